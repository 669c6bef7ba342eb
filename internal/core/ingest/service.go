package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jinford/livechat/internal/platform/metrics"
)

// Service はチャットリプレイの取り込みループを提供します
type Service struct {
	messages MessageRepository
	source   TranscriptSource
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService は新しいServiceを作成します
func NewService(messages MessageRepository, source TranscriptSource, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		messages: messages,
		source:   source,
		metrics:  m,
		logger:   logger,
	}
}

// IngestVideo は動画1本のチャットリプレイを取り込み、新規挿入件数を返します。
// 既に取り込み済みのメッセージはIDの衝突で静かにスキップされるため、
// 失敗・中断したジョブの再実行は安全に収束します。
// コンテンツ取得不能はapperr.UnavailableErrorのまま呼び出し元へ伝播します。
func (s *Service) IngestVideo(ctx context.Context, video, channel string, startTime time.Time) (int, error) {
	stream, err := s.source.Open(ctx, video, channel)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	added := 0
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, err
		}
		if ev.Type != EventTypeChat {
			continue
		}

		inserted, err := s.messages.InsertIfAbsent(ctx, &Message{
			ID:        ev.ID,
			Type:      string(EventTypeChat),
			Video:     video,
			Channel:   channel,
			Timestamp: ev.Timestamp,
			Timecode:  Timecode(ev.Timestamp, startTime),
			Text:      ev.Text,
		})
		if err != nil {
			return added, fmt.Errorf("failed to insert message: %w", err)
		}
		if inserted {
			added++
			s.metrics.IncMessagesInserted(1)
		} else {
			s.metrics.IncMessagesSkipped(1)
		}
	}

	s.logger.Info("ingest complete", "video", video, "added", added)
	return added, nil
}
