package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/livechat/internal/core/channel"
	"github.com/jinford/livechat/internal/core/job"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

// fakeChannels はchannel.Repositoryの最小実装です
type fakeChannels struct {
	oldest    *channel.Channel
	advanced  map[string]time.Time
	advCalled int
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{advanced: make(map[string]time.Time)}
}

func (f *fakeChannels) Upsert(ctx context.Context, params channel.UpsertParams) error { return nil }

func (f *fakeChannels) GetByID(ctx context.Context, id string) (*channel.Channel, error) {
	return nil, nil
}

func (f *fakeChannels) List(ctx context.Context) ([]*channel.Channel, error) { return nil, nil }

func (f *fakeChannels) OldestActive(ctx context.Context) (*channel.Channel, error) {
	return f.oldest, nil
}

func (f *fakeChannels) AdvanceLastStream(ctx context.Context, id string, t time.Time) error {
	f.advCalled++
	if cur, ok := f.advanced[id]; !ok || t.After(cur) {
		f.advanced[id] = t
	}
	return nil
}

type fakeRefresher struct {
	err   error
	calls []string
}

func (f *fakeRefresher) RefreshMetadata(ctx context.Context, id string) error {
	f.calls = append(f.calls, id)
	return f.err
}

// fakeUploads はページ列を順に返すUploadSourceです
type fakeUploads struct {
	pages   map[string]*UploadPage // pageToken -> page
	fetched []string
}

func (f *fakeUploads) UploadsPage(ctx context.Context, uploadsHandle, pageToken string, pageSize int) (*UploadPage, error) {
	f.fetched = append(f.fetched, pageToken)
	page, ok := f.pages[pageToken]
	if !ok {
		return nil, errors.New("unknown page token")
	}
	return page, nil
}

type fakeCatalog struct {
	details map[string]VideoDetails
}

func (f *fakeCatalog) Videos(ctx context.Context, ids []string) (map[string]VideoDetails, error) {
	out := make(map[string]VideoDetails, len(ids))
	for _, id := range ids {
		if d, ok := f.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// memJobRepo はjob.Repositoryのインメモリ実装です
type memJobRepo struct {
	jobs map[string]*job.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*job.Job)}
}

func (r *memJobRepo) key(typ job.Type, video string) string { return string(typ) + "/" + video }

func (r *memJobRepo) InsertIfAbsent(ctx context.Context, j *job.Job) (bool, error) {
	k := r.key(j.Type, j.Video)
	if _, ok := r.jobs[k]; ok {
		return false, nil
	}
	cp := *j
	r.jobs[k] = &cp
	return true, nil
}

func (r *memJobRepo) Get(ctx context.Context, typ job.Type, video string) (*job.Job, error) {
	j, ok := r.jobs[r.key(typ, video)]
	if !ok {
		return nil, nil
	}
	return j, nil
}

func (r *memJobRepo) Exists(ctx context.Context, typ job.Type, video string) (bool, error) {
	_, ok := r.jobs[r.key(typ, video)]
	return ok, nil
}

func (r *memJobRepo) UpdateState(ctx context.Context, typ job.Type, video string, from, to job.State) (bool, error) {
	j, ok := r.jobs[r.key(typ, video)]
	if !ok || j.State != from {
		return false, nil
	}
	j.State = to
	return true, nil
}

func (r *memJobRepo) RecordFailure(ctx context.Context, typ job.Type, video string, errMsg string, meta job.Meta) error {
	return nil
}

func (r *memJobRepo) DueQueued(ctx context.Context, now time.Time, limit int) ([]*job.Job, error) {
	return nil, nil
}

func (r *memJobRepo) CountQueued(ctx context.Context) (int, error) { return len(r.jobs), nil }

func (r *memJobRepo) ListByState(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	return nil, nil
}

func newTestOrchestrator(channels *fakeChannels, refresher *fakeRefresher, jobs *memJobRepo, uploads *fakeUploads, catalog *fakeCatalog) *Orchestrator {
	sched := job.NewScheduler(jobs, 180*time.Second, nil)
	o := NewOrchestrator(channels, refresher, sched, uploads, catalog, nil, nil, Config{
		PageSize:   50,
		PagePause:  time.Millisecond,
		RecentWait: 24 * time.Hour,
	})
	o.now = func() time.Time { return testNow }
	return o
}

func endedStream(channelID string, end time.Time) VideoDetails {
	return VideoDetails{
		ChannelID: channelID,
		StartTime: end.Add(-2 * time.Hour),
		EndTime:   end,
	}
}

func TestCrawlChannelNewChannel(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	refresher := &fakeRefresher{}
	jobs := newMemJobRepo()
	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"":   {VideoIDs: []string{"v3", "v2"}, NextPageToken: "p2"},
		"p2": {VideoIDs: []string{"v1"}},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{
		"v3": endedStream("UCx", testNow.Add(-72*time.Hour)),
		"v2": endedStream("UCx", testNow.Add(-96*time.Hour)),
		"v1": endedStream("UCx", testNow.Add(-120*time.Hour)),
	}}

	o := newTestOrchestrator(channels, refresher, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	// 全ページを辿って全動画のジョブが入る
	assert.Equal(t, []string{"", "p2"}, uploads.fetched)
	for _, id := range []string{"v1", "v2", "v3"} {
		j, _ := jobs.Get(ctx, job.TypeChat, id)
		require.NotNil(t, j, "job for %s", id)
		assert.Equal(t, "UCx", j.Channel)
		start, ok := j.Meta.StartTime()
		require.True(t, ok)
		assert.False(t, start.IsZero())
		_, deferred := j.Meta.ScheduledAt()
		assert.False(t, deferred, "old stream must not be deferred")
	}

	// ウォーターマークは最も新しい終了時刻まで前進する
	assert.Equal(t, testNow.Add(-72*time.Hour), channels.advanced["UCx"])
	assert.Equal(t, []string{"UCx"}, refresher.calls)
}

func TestCrawlChannelCaughtUp(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	jobs := newMemJobRepo()
	// 最新アップロードのジョブが既にある
	_, _ = jobs.InsertIfAbsent(ctx, &job.Job{Type: job.TypeChat, Video: "v3"})

	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"": {VideoIDs: []string{"v3", "v2"}, NextPageToken: "p2"},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{}}

	o := newTestOrchestrator(channels, &fakeRefresher{}, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	// 先頭ページの時点で追いついていると判断し、それ以上は辿らない
	assert.Equal(t, []string{""}, uploads.fetched)
	assert.Equal(t, 0, channels.advCalled)

	j, _ := jobs.Get(ctx, job.TypeChat, "v2")
	assert.Nil(t, j, "no job should be enqueued when caught up")
}

func TestCrawlChannelBoundaryMidPage(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	jobs := newMemJobRepo()
	// ページ途中のv1だけ既知
	_, _ = jobs.InsertIfAbsent(ctx, &job.Job{Type: job.TypeChat, Video: "v1"})

	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"": {VideoIDs: []string{"v3", "v2", "v1", "v0"}, NextPageToken: "p2"},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{
		"v3": endedStream("UCx", testNow.Add(-48*time.Hour)),
		"v2": endedStream("UCx", testNow.Add(-72*time.Hour)),
		"v1": endedStream("UCx", testNow.Add(-96*time.Hour)),
		"v0": endedStream("UCx", testNow.Add(-120*time.Hour)),
	}}

	o := newTestOrchestrator(channels, &fakeRefresher{}, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	// 既知動画に到達した時点で打ち切り、次ページは取得しない
	assert.Equal(t, []string{""}, uploads.fetched)

	j, _ := jobs.Get(ctx, job.TypeChat, "v2")
	assert.NotNil(t, j)
	j, _ = jobs.Get(ctx, job.TypeChat, "v0")
	assert.Nil(t, j, "videos past the boundary must not be enqueued")

	// 境界到達でもウォーターマークは発見済み分だけ前進する
	assert.Equal(t, testNow.Add(-48*time.Hour), channels.advanced["UCx"])
}

func TestCrawlChannelRecentDeferral(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	jobs := newMemJobRepo()
	recentEnd := testNow.Add(-2 * time.Hour)
	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"": {VideoIDs: []string{"fresh", "old"}},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{
		"fresh": endedStream("UCx", recentEnd),
		"old":   endedStream("UCx", testNow.Add(-72*time.Hour)),
	}}

	o := newTestOrchestrator(channels, &fakeRefresher{}, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	// 終了から24時間以内の配信は実行予定がずらされる
	j, _ := jobs.Get(ctx, job.TypeChat, "fresh")
	require.NotNil(t, j)
	scheduled, ok := j.Meta.ScheduledAt()
	require.True(t, ok)
	assert.Equal(t, recentEnd.Add(24*time.Hour), scheduled)

	j, _ = jobs.Get(ctx, job.TypeChat, "old")
	require.NotNil(t, j)
	_, ok = j.Meta.ScheduledAt()
	assert.False(t, ok)
}

func TestCrawlChannelSkipsLiveAndNonStreams(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	jobs := newMemJobRepo()
	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"": {VideoIDs: []string{"live", "plain", "done"}},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{
		// 配信中: 終了時刻なし
		"live": {ChannelID: "UCx", StartTime: testNow.Add(-time.Hour)},
		// plainは通常動画でカタログに配信情報なし
		"done": endedStream("UCx", testNow.Add(-48*time.Hour)),
	}}

	o := newTestOrchestrator(channels, &fakeRefresher{}, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	for _, id := range []string{"live", "plain"} {
		j, _ := jobs.Get(ctx, job.TypeChat, id)
		assert.Nil(t, j, "%s must be skipped", id)
	}
	j, _ := jobs.Get(ctx, job.TypeChat, "done")
	assert.NotNil(t, j)
}

func TestCrawlChannelRefreshFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()

	channels := newFakeChannels()
	jobs := newMemJobRepo()
	uploads := &fakeUploads{pages: map[string]*UploadPage{
		"": {VideoIDs: []string{"v1"}},
	}}
	catalog := &fakeCatalog{details: map[string]VideoDetails{
		"v1": endedStream("UCx", testNow.Add(-48*time.Hour)),
	}}

	refresher := &fakeRefresher{err: errors.New("quota exceeded")}
	o := newTestOrchestrator(channels, refresher, jobs, uploads, catalog)
	require.NoError(t, o.CrawlChannel(ctx, "UCx", "UUx"))

	j, _ := jobs.Get(ctx, job.TypeChat, "v1")
	assert.NotNil(t, j, "crawl must continue when metadata refresh fails")
}

func TestCrawlOldest(t *testing.T) {
	ctx := context.Background()

	t.Run("対象チャンネルがなければ何もしない", func(t *testing.T) {
		channels := newFakeChannels()
		uploads := &fakeUploads{pages: map[string]*UploadPage{}}
		o := newTestOrchestrator(channels, &fakeRefresher{}, newMemJobRepo(), uploads, &fakeCatalog{})

		require.NoError(t, o.CrawlOldest(ctx))
		assert.Empty(t, uploads.fetched)
	})

	t.Run("最も古いチャンネルをクロールする", func(t *testing.T) {
		channels := newFakeChannels()
		channels.oldest = &channel.Channel{ID: "UCx", UploadsHandle: "UUx"}
		uploads := &fakeUploads{pages: map[string]*UploadPage{
			"": {VideoIDs: nil},
		}}
		o := newTestOrchestrator(channels, &fakeRefresher{}, newMemJobRepo(), uploads, &fakeCatalog{})

		require.NoError(t, o.CrawlOldest(ctx))
		assert.Equal(t, []string{""}, uploads.fetched)
	})
}
