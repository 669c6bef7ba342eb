package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/livechat/internal/core/apperr"
)

// TagCacheInvalidator はタグ集合の変更を検索レイヤーに通知します
type TagCacheInvalidator interface {
	InvalidateTags()
}

// Service はチャンネル管理のビジネスロジックを提供します
type Service struct {
	repo        Repository
	resolver    Resolver
	invalidator TagCacheInvalidator
	logger      *slog.Logger
}

// NewService は新しいServiceを作成します
func NewService(repo Repository, resolver Resolver, invalidator TagCacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		resolver:    resolver,
		invalidator: invalidator,
		logger:      logger,
	}
}

// UpdateChannels はチャンネルを解決して登録・更新します。
// キーはチャンネルID（"UC"始まり）またはハンドル（"@"始まり）です。
// Tags / Active は指定された場合のみ既存行を上書きします。
func (s *Service) UpdateChannels(ctx context.Context, updates map[string]Update) error {
	if len(updates) == 0 {
		return nil
	}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		if !strings.HasPrefix(key, "UC") && !strings.HasPrefix(key, "@") {
			return apperr.Validationf("invalid channel %s", key)
		}
		keys = append(keys, key)
	}

	// 入力キー（IDまたはハンドル）ごとの解決結果
	resolved, err := s.resolver.Resolve(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to resolve channels: %w", err)
	}

	containsTagUpdates := false
	for key, upd := range updates {
		info, ok := resolved[key]
		if !ok {
			return &apperr.NotFoundError{Kind: "channel", ID: key}
		}
		if strings.HasPrefix(key, "@") {
			s.logger.Info("resolved channel for handle", "channel", info.ID, "handle", key)
		}
		if upd.Tags != nil {
			containsTagUpdates = true
		}
		if err := s.repo.Upsert(ctx, UpsertParams{
			Info:   info,
			Tags:   upd.Tags,
			Active: upd.Active,
		}); err != nil {
			return fmt.Errorf("failed to upsert channel %s: %w", info.ID, err)
		}
	}

	if containsTagUpdates && s.invalidator != nil {
		s.invalidator.InvalidateTags()
		s.logger.Info("cached tags cleared")
	}
	return nil
}

// RefreshMetadata はチャンネルのメタデータのみを最新化します。
// タグ・アクティブ状態には触れません。
func (s *Service) RefreshMetadata(ctx context.Context, id string) error {
	return s.UpdateChannels(ctx, map[string]Update{id: {}})
}
