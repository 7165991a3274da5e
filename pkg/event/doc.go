// Package event defines the envelope every capture source produces and the
// closed set of payload variants that can travel through the recorder
// pipeline. Routing to storage is decided by the payload's concrete type, so a
// new modality cannot be added without teaching every switch about it.
package event
