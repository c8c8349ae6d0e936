package show

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShow(t *testing.T) {
	tests := []struct {
		name      string
		showID    string
		creatorID string
		roomName  string
		price     int64
		wantError error
	}{
		{
			name:      "正常系: ショーの作成",
			showID:    "show_1",
			creatorID: "creator456",
			roomName:  "room-1",
			price:     100,
		},
		{
			name:      "正常系: 無料ショー",
			showID:    "show_2",
			creatorID: "creator456",
			roomName:  "room-2",
			price:     0,
		},
		{
			name:      "異常系: ショーIDが空",
			showID:    "",
			creatorID: "creator456",
			roomName:  "room-1",
			price:     100,
			wantError: ErrInvalidShowID,
		},
		{
			name:      "異常系: クリエイターIDが空",
			showID:    "show_3",
			creatorID: "",
			roomName:  "room-1",
			price:     100,
			wantError: ErrInvalidShow,
		},
		{
			name:      "異常系: マイナスのチケット価格",
			showID:    "show_4",
			creatorID: "creator456",
			roomName:  "room-1",
			price:     -1,
			wantError: ErrInvalidShow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShow(tt.showID, tt.creatorID, tt.roomName, tt.price)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ShowStatusScheduled, s.Status())
			assert.Nil(t, s.StartedAt())
		})
	}
}

func TestShow_Start(t *testing.T) {
	now := time.Now()

	t.Run("正常系: scheduled→live", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		err := s.Start(now)
		require.NoError(t, err)
		assert.Equal(t, ShowStatusLive, s.Status())
		assert.Equal(t, now, *s.StartedAt())
		assert.Equal(t, now, *s.LastHeartbeatAt())
	})

	t.Run("異常系: live中のショーは再開始できない", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		require.NoError(t, s.Start(now))
		err := s.Start(now.Add(time.Minute))
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("異常系: 終了済みショーは再開始できない", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		require.NoError(t, s.Start(now))
		require.NoError(t, s.End(now.Add(time.Hour), 10, 500))
		err := s.Start(now.Add(2 * time.Hour))
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestShow_Heartbeat(t *testing.T) {
	now := time.Now()

	t.Run("正常系: live中のハートビート", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		require.NoError(t, s.Start(now))
		beat := now.Add(30 * time.Second)
		err := s.Heartbeat(beat)
		require.NoError(t, err)
		assert.Equal(t, beat, *s.LastHeartbeatAt())
	})

	t.Run("異常系: scheduled状態ではハートビート不可", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		err := s.Heartbeat(now)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestShow_End(t *testing.T) {
	now := time.Now()

	t.Run("正常系: live→ended（集計値を保存）", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		require.NoError(t, s.Start(now))
		endedAt := now.Add(time.Hour)
		err := s.End(endedAt, 12, 700)
		require.NoError(t, err)
		assert.Equal(t, ShowStatusEnded, s.Status())
		assert.Equal(t, endedAt, *s.EndedAt())
		assert.Equal(t, int64(12), s.AttendeeCount())
		assert.Equal(t, int64(700), s.TotalGifts())
	})

	t.Run("異常系: scheduledからは終了できない", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		err := s.End(now, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("異常系: ended状態は終端（再終了不可）", func(t *testing.T) {
		s := MustNewShow("show_1", "creator456", "room-1", 100)
		require.NoError(t, s.Start(now))
		require.NoError(t, s.End(now.Add(time.Hour), 10, 500))
		err := s.End(now.Add(2*time.Hour), 20, 1000)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
		assert.Equal(t, int64(10), s.AttendeeCount(), "集計値は最初の終了時のまま")
	})
}

func TestTicket(t *testing.T) {
	now := time.Now()

	t.Run("正常系: チケットの作成とアクセス許可", func(t *testing.T) {
		ticket, err := NewTicket("tkt_1", "show_1", "fan123", now)
		require.NoError(t, err)
		assert.False(t, ticket.AccessGranted(), "作成直後は未許可")
		ticket.Grant()
		assert.True(t, ticket.AccessGranted())
	})

	t.Run("異常系: 保有者IDが空", func(t *testing.T) {
		ticket, err := NewTicket("tkt_1", "show_1", "", now)
		assert.ErrorIs(t, err, ErrInvalidTicket)
		assert.Nil(t, ticket)
	})
}
