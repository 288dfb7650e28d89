package healthsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	glycoerrors "github.com/hpungsan/glyco/internal/errors"
)

type fakeSource struct {
	granted  bool
	authErr  error
	authWait bool
	samples  []Sample
	fetchErr error
	authN    int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) RequestAuthorization(ctx context.Context) (bool, error) {
	f.authN++
	if f.authWait {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.granted, f.authErr
}

func (f *fakeSource) FetchLatest(ctx context.Context) (*Sample, error) {
	if f.fetchErr != nil || len(f.samples) == 0 {
		return nil, f.fetchErr
	}
	return &f.samples[0], nil
}

func (f *fakeSource) FetchHistory(ctx context.Context, limit int) ([]Sample, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return newestFirst(append([]Sample(nil), f.samples...), limit), nil
}

type fakeMerger struct {
	seen map[string]bool
	got  [][]Sample
}

func (m *fakeMerger) Merge(ctx context.Context, samples []Sample) (MergeResult, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	m.got = append(m.got, samples)
	var r MergeResult
	for _, s := range samples {
		if m.seen[s.ID] {
			r.Skipped++
			continue
		}
		m.seen[s.ID] = true
		r.Added++
	}
	return r, nil
}

func TestSyncer_SyncMergesAndIsIdempotent(t *testing.T) {
	now := time.Now()
	src := &fakeSource{granted: true, samples: []Sample{
		{ID: "a", Value: 100, Date: now.Add(-time.Hour)},
		{ID: "b", Value: 120, Date: now},
	}}
	m := &fakeMerger{}
	s := NewSyncer(src, m, time.Second, nil)

	res, err := s.Sync(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, s.Connected())
	require.Equal(t, 2, res.Fetched)
	require.Equal(t, 2, res.Added)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, "fake", res.Source)

	res2, err := s.Sync(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, res2.Added)
	require.Equal(t, 2, res2.Skipped)
	require.NotEqual(t, res.RunID, res2.RunID)
	require.Equal(t, 1, src.authN, "authorization is requested once")
}

func TestSyncer_DeniedIsNotConnected(t *testing.T) {
	s := NewSyncer(&fakeSource{granted: false}, &fakeMerger{}, time.Second, nil)

	_, err := s.Sync(context.Background(), 10)
	require.True(t, glycoerrors.Is(err, glycoerrors.ErrNotConnected))
	require.False(t, s.Connected())
}

func TestSyncer_ConnectTimeout(t *testing.T) {
	s := NewSyncer(&fakeSource{authWait: true}, &fakeMerger{}, 20*time.Millisecond, nil)

	ok, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncer_ConnectTransportErrorIsDenial(t *testing.T) {
	s := NewSyncer(&fakeSource{authErr: errors.New("dial tcp: refused")}, &fakeMerger{}, time.Second, nil)

	ok, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncer_FetchFailureIsEmpty(t *testing.T) {
	m := &fakeMerger{}
	s := NewSyncer(&fakeSource{granted: true, fetchErr: errors.New("503")}, m, time.Second, nil)

	res, err := s.Sync(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, res.Fetched)
	require.Empty(t, m.got)
}

func TestSyncer_Latest(t *testing.T) {
	src := &fakeSource{granted: true, samples: []Sample{{ID: "x", Value: 99, Date: time.Now()}}}
	s := NewSyncer(src, &fakeMerger{}, 0, nil)
	require.Equal(t, "x", s.Latest(context.Background()).ID)

	src.fetchErr = errors.New("down")
	require.Nil(t, s.Latest(context.Background()))
}
