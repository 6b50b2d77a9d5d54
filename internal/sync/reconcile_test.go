package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/claims-inbox/internal/model"
)

func Test_Reconcile_Cases(t *testing.T) {
	tests := []struct {
		name string
		prev []model.Notification
		next []model.Notification
		want []int64
	}{
		{
			name: "new unread id is emitted",
			prev: []model.Notification{n(1, false)},
			next: []model.Notification{n(2, false), n(1, false)},
			want: []int64{2},
		},
		{
			name: "new read id is not emitted",
			prev: []model.Notification{n(1, false)},
			next: []model.Notification{n(2, true), n(1, false)},
		},
		{
			name: "seen id with changed fields is not emitted",
			prev: []model.Notification{n(1, true)},
			next: []model.Notification{n(1, false)},
		},
		{
			name: "snapshot order is kept",
			prev: nil,
			next: []model.Notification{n(4, false), n(2, false), n(3, false)},
			want: []int64{4, 2, 3},
		},
		{
			name: "duplicate ids in a snapshot emit once",
			prev: nil,
			next: []model.Notification{n(7, false), n(7, false)},
			want: []int64{7},
		},
		{
			name: "removed ids are ignored",
			prev: []model.Notification{n(1, false), n(2, false)},
			next: []model.Notification{n(1, false)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(NewBaseline(tt.prev), tt.next)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, model.IDs(got))
		})
	}
}

func Test_Dedupe_KeepsFirstOccurrence(t *testing.T) {
	got := Dedupe([]model.Notification{n(3, false), n(1, false), n(3, true), n(2, false)})
	assert.Equal(t, []int64{3, 1, 2}, model.IDs(got))
	assert.False(t, got[0].Read)
}
