package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/livechat/internal/core/apperr"
)

// fakeSearchRepo は受け取ったパラメータを記録するRepositoryスタブです
type fakeSearchRepo struct {
	lastMessageParams MessageSearchParams
	lastChannelParams ChannelSearchParams
	tags              []string
	tagCalls          int
}

func (f *fakeSearchRepo) SearchMessages(ctx context.Context, params MessageSearchParams) ([]*MessageResult, error) {
	f.lastMessageParams = params
	return []*MessageResult{}, nil
}

func (f *fakeSearchRepo) SearchChannels(ctx context.Context, params ChannelSearchParams) ([]*ChannelResult, error) {
	f.lastChannelParams = params
	return []*ChannelResult{}, nil
}

func (f *fakeSearchRepo) AllTags(ctx context.Context) ([]string, error) {
	f.tagCalls++
	return f.tags, nil
}

func (f *fakeSearchRepo) Stats(ctx context.Context) (*Stats, error) {
	return &Stats{}, nil
}

func TestSearchMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("クエリは必須", func(t *testing.T) {
		svc := NewService(&fakeSearchRepo{})
		_, err := svc.SearchMessages(ctx, MessageQuery{})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("limitの範囲チェック", func(t *testing.T) {
		svc := NewService(&fakeSearchRepo{})
		_, err := svc.SearchMessages(ctx, MessageQuery{Q: "hello", Limit: 101})
		assert.True(t, apperr.IsValidation(err))

		_, err = svc.SearchMessages(ctx, MessageQuery{Q: "hello", Limit: -1})
		assert.True(t, apperr.IsValidation(err))

		_, err = svc.SearchMessages(ctx, MessageQuery{Q: "hello", Offset: -1})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("limit未指定はデフォルト値になる", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)
		_, err := svc.SearchMessages(ctx, MessageQuery{Q: "hello"})
		require.NoError(t, err)
		assert.Equal(t, 100, repo.lastMessageParams.Limit)
	})

	t.Run("WeekOfは月曜始まりの週に正規化される", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)

		// 2024-06-06は木曜日
		_, err := svc.SearchMessages(ctx, MessageQuery{
			Q:      "hello",
			WeekOf: time.Date(2024, 6, 6, 15, 30, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		w := repo.lastMessageParams.Window
		assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), w.Start)
		assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), w.End)
	})

	t.Run("WeekOfゼロ値は現在時刻の週になる", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)
		svc.now = func() time.Time { return time.Date(2024, 6, 6, 15, 30, 0, 0, time.UTC) }

		_, err := svc.SearchMessages(ctx, MessageQuery{Q: "hello"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), repo.lastMessageParams.Window.Start)
	})

	t.Run("チャンネル指定時はタグフィルターを無視する", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)

		_, err := svc.SearchMessages(ctx, MessageQuery{
			Q:       "hello",
			Channel: "UCx",
			Tags:    []string{"vtuber"},
		})
		require.NoError(t, err)
		assert.Equal(t, "UCx", repo.lastMessageParams.Channel)
		assert.Empty(t, repo.lastMessageParams.Tags)
	})

	t.Run("チャンネル未指定ならタグフィルターが渡る", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)

		_, err := svc.SearchMessages(ctx, MessageQuery{
			Q:    "hello",
			Tags: []string{"vtuber", "en"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"vtuber", "en"}, repo.lastMessageParams.Tags)
	})
}

func TestSearchChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("limitの範囲チェック", func(t *testing.T) {
		svc := NewService(&fakeSearchRepo{})
		_, err := svc.SearchChannels(ctx, ChannelQuery{Limit: 31})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("limit未指定はデフォルト値になる", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)
		_, err := svc.SearchChannels(ctx, ChannelQuery{})
		require.NoError(t, err)
		assert.Equal(t, 10, repo.lastChannelParams.Limit)
	})

	t.Run("2文字未満のクエリは全件扱いになる", func(t *testing.T) {
		repo := &fakeSearchRepo{}
		svc := NewService(repo)

		_, err := svc.SearchChannels(ctx, ChannelQuery{Q: "a"})
		require.NoError(t, err)
		assert.Equal(t, "", repo.lastChannelParams.Q)

		// マルチバイトでも文字数で判定する
		_, err = svc.SearchChannels(ctx, ChannelQuery{Q: "あ"})
		require.NoError(t, err)
		assert.Equal(t, "", repo.lastChannelParams.Q)

		_, err = svc.SearchChannels(ctx, ChannelQuery{Q: "ある"})
		require.NoError(t, err)
		assert.Equal(t, "ある", repo.lastChannelParams.Q)
	})
}

func TestTagsCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSearchRepo{tags: []string{"en", "vtuber"}}
	svc := NewService(repo)

	tags, err := svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "vtuber"}, tags)
	assert.Equal(t, 1, repo.tagCalls)

	// 2回目はキャッシュから返る
	_, err = svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.tagCalls)

	// 無効化すると再取得する
	svc.InvalidateTags()
	_, err = svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.tagCalls)
}

func TestWeekWindow(t *testing.T) {
	tests := []struct {
		name      string
		input     time.Time
		wantStart time.Time
	}{
		{
			"週の途中",
			time.Date(2024, 6, 6, 15, 30, 0, 0, time.UTC), // 木曜
			time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			"月曜0時は同じ週の先頭",
			time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			"日曜は前の月曜に丸められる",
			time.Date(2024, 6, 9, 23, 59, 59, 0, time.UTC),
			time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			"非UTCの時刻はUTCに正規化される",
			time.Date(2024, 6, 3, 5, 0, 0, 0, time.FixedZone("JST", 9*3600)), // UTCでは6/2(日)
			time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			"月またぎ",
			time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), // 火曜
			time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeekWindow(tt.input)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantStart.AddDate(0, 0, 7), w.End)
		})
	}
}
