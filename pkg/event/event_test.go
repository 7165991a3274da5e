package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlyPointerMoveIsBestEffort(t *testing.T) {
	for _, m := range Modalities() {
		if m == ModalityPointerMove {
			assert.Equal(t, BestEffort, m.Delivery(), m.String())
			continue
		}
		assert.Equal(t, Guaranteed, m.Delivery(), m.String())
	}
}

func TestEveryModalityRoutesToATable(t *testing.T) {
	known := make(map[Table]bool)
	for _, table := range Tables() {
		known[table] = true
	}
	for _, m := range Modalities() {
		table := m.Table()
		require.NotEmpty(t, table, "modality %s has no table", m)
		assert.True(t, known[table], "modality %s routes to unmanaged table %s", m, table)
		assert.NotEqual(t, TableActivityPattern, table)
	}
	assert.Equal(t, Table(""), Modality(0).Table())
}

func TestPointerModalitiesShareTable(t *testing.T) {
	assert.Equal(t, TablePointerEvent, ModalityPointerMove.Table())
	assert.Equal(t, TablePointerEvent, ModalityPointerClick.Table())
	assert.Equal(t, TablePointerEvent, ModalityPointerScroll.Table())
	assert.Equal(t, TableBrowserInteraction, ModalityBrowserNav.Table())
}

func TestModalityTextRoundTrip(t *testing.T) {
	for _, m := range Modalities() {
		data, err := json.Marshal(m)
		require.NoError(t, err)

		var decoded Modality
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, m, decoded)
	}

	_, err := ParseModality("telepathy")
	assert.Error(t, err)
	_, err = Modality(99).MarshalText()
	assert.Error(t, err)
}

func TestEnvelopeDerivesFromPayload(t *testing.T) {
	ev := Event{Payload: MovementBatch{Samples: make([]Sample, 3)}}
	assert.Equal(t, ModalityPointerMove, ev.Modality())
	assert.Equal(t, TablePointerEvent, ev.Table())
	assert.Equal(t, BestEffort, ev.Delivery())
	assert.Equal(t, 3, ev.Payload.(MovementBatch).Count())

	assert.Equal(t, Modality(0), Event{}.Modality())
}
