package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChats() map[string]chat.Chat {
	ts := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	a := chat.New("dev-CHAT1", ts)
	a.ConversationID = "01HXYZ"
	a.Append(chat.Message{Text: "turn on the lights", Role: chat.RoleUser, Timestamp: ts.Add(time.Second)})
	a.Append(chat.Message{Text: "Turned on the lights", Role: chat.RoleAssistant, Timestamp: ts.Add(2 * time.Second)})

	b := chat.New("dev-CHAT2", ts.Add(time.Minute))
	return map[string]chat.Chat{a.ID: a, b.ID: b}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs, "/state/gizmo/chats.json")
	ctx := context.Background()

	want := sampleChats()
	require.NoError(t, store.Save(ctx, want))

	exists, err := afero.Exists(fs, "/state/gizmo/chats.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file must be renamed away")

	got, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/nope/chats.json")
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/chats.json", []byte("{not json"), 0o600))

	_, err := New(fs, "/chats.json").Load(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Op)
}

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "map form",
			input:   `{"a":{"id":"a","title":"A","messages":[]},"b":{"title":"B"}}`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "list form skips entries without id",
			input:   `[{"id":"a","title":"A"},{"title":"orphan"}]`,
			wantIDs: []string{"a"},
		},
		{
			name:    "empty file",
			input:   "  ",
			wantIDs: nil,
		},
		{
			name:    "scalar",
			input:   `42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for id, c := range got {
				assert.Equal(t, id, c.ID)
				assert.Equal(t, 1, c.MessageCounter)
				ids = append(ids, id)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestDeviceIDPersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	first := DeviceID(fs, "/state", nil)
	assert.NotEqual(t, UnknownDevice, first)
	assert.Equal(t, first, DeviceID(fs, "/state", nil))
}

func TestDeviceIDFallback(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Equal(t, UnknownDevice, DeviceID(fs, "/state", nil))
}
