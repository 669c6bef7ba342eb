package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jinford/livechat/internal/core/apperr"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 100
	defaultChannelLimit = 10
	maxChannelLimit     = 30

	// タイプアヘッドのクエリを適用する最小文字数
	minChannelQueryLen = 2
)

// Service は検索クエリレイヤーを提供します。
// タグ一覧のキャッシュを所有し、チャンネルのタグ変更時に
// InvalidateTagsで同期的に無効化されます。
type Service struct {
	repo Repository
	now  func() time.Time

	mu         sync.RWMutex
	cachedTags []string
}

// NewService は新しいServiceを作成します
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// SearchMessages は週単位の時間窓で全文検索を実行します。
// WeekOfは含まれる月曜始まりの週に正規化されます。
// 該当なしの週は空の結果を返します（エラーではありません）。
func (s *Service) SearchMessages(ctx context.Context, q MessageQuery) ([]*MessageResult, error) {
	if q.Q == "" {
		return nil, apperr.Validationf("q is required")
	}
	if q.Limit < 0 || q.Limit > maxMessageLimit {
		return nil, apperr.Validationf("limit must be between 1 and %d", maxMessageLimit)
	}
	if q.Offset < 0 {
		return nil, apperr.Validationf("offset must not be negative")
	}

	limit := q.Limit
	if limit == 0 {
		limit = defaultMessageLimit
	}
	weekOf := q.WeekOf
	if weekOf.IsZero() {
		weekOf = s.now()
	}

	params := MessageSearchParams{
		Q:       q.Q,
		Channel: q.Channel,
		Window:  WeekWindow(weekOf),
		Limit:   limit,
		Offset:  q.Offset,
	}
	// チャンネル指定時はタグフィルターを無視する
	if q.Channel == "" {
		params.Tags = q.Tags
	}

	results, err := s.repo.SearchMessages(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("message search failed: %w", err)
	}
	return results, nil
}

// SearchChannels はチャンネルのタイプアヘッド検索を実行します
func (s *Service) SearchChannels(ctx context.Context, q ChannelQuery) ([]*ChannelResult, error) {
	if q.Limit < 0 || q.Limit > maxChannelLimit {
		return nil, apperr.Validationf("limit must be between 1 and %d", maxChannelLimit)
	}
	if q.Offset < 0 {
		return nil, apperr.Validationf("offset must not be negative")
	}

	limit := q.Limit
	if limit == 0 {
		limit = defaultChannelLimit
	}

	query := q.Q
	if len([]rune(query)) < minChannelQueryLen {
		query = ""
	}

	results, err := s.repo.SearchChannels(ctx, ChannelSearchParams{
		Q:      query,
		Limit:  limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("channel search failed: %w", err)
	}
	return results, nil
}

// Tags は全チャンネルのタグ一覧を返します。結果はメモ化され、
// タグ集合が変更されるまで再利用されます。
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	cached := s.cachedTags
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	tags, err := s.repo.AllTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}

	s.mu.Lock()
	s.cachedTags = tags
	s.mu.Unlock()
	return tags, nil
}

// InvalidateTags はタグキャッシュを破棄します。
// チャンネルのタグ集合を変更した書き込み側が同期的に呼び出します。
func (s *Service) InvalidateTags() {
	s.mu.Lock()
	s.cachedTags = nil
	s.mu.Unlock()
}

// Stats はデータ量の概況を返します
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}
