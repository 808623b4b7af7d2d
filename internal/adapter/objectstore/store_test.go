package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/observability"
	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoSuchKey = errors.New("the specified key does not exist")

// memObjects is an in-memory bucket.
type memObjects struct {
	data map[string][]byte
	puts int
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, errNoSuchKey
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memObjects) PutFile(_ context.Context, key, localPath string) error {
	b, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.puts++
	return nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newTestStore(t *testing.T, objs *memObjects) *Store {
	t.Helper()
	s, err := newStore(objs, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_OpenAndCreate(t *testing.T) {
	objs := &memObjects{data: map[string][]byte{
		"station/daily.csv": []byte("obs_year,obs_doy\n2024,150\n"),
	}}
	s := newTestStore(t, objs)

	in, err := s.Open("station/daily.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"obs_year", "obs_doy"}, in.Schema().Columns())
	row, err := in.Next()
	require.NoError(t, err)
	require.NoError(t, in.Close())

	out, err := s.Create("station/daily_updated.csv", []string{"obs_year", "obs_doy"})
	require.NoError(t, err)
	require.NoError(t, out.Write(row))
	assert.NotContains(t, objs.data, "station/daily_updated.csv", "nothing uploaded before commit")

	require.NoError(t, out.Commit())
	assert.Equal(t, "obs_year,obs_doy\r\n2024,150\r\n", string(objs.data["station/daily_updated.csv"]))
}

func TestStore_AbortUploadsNothing(t *testing.T) {
	objs := &memObjects{data: map[string][]byte{}}
	s := newTestStore(t, objs)

	out, err := s.Create("daily_updated.csv", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, out.Abort())
	assert.Zero(t, objs.puts)

	entries, err := os.ReadDir(s.staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RevertRemovesUpload(t *testing.T) {
	objs := &memObjects{data: map[string][]byte{}}
	s := newTestStore(t, objs)

	out, err := s.Create("hourly_updated.csv", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, out.Revert(), "revert before commit is a no-op")
	require.NoError(t, out.Flush())
	assert.Zero(t, objs.puts)

	require.NoError(t, out.Commit())
	require.Contains(t, objs.data, "hourly_updated.csv")

	require.NoError(t, out.Revert())
	assert.NotContains(t, objs.data, "hourly_updated.csv")
}

func TestStore_OpenMissing(t *testing.T) {
	s := newTestStore(t, &memObjects{data: map[string][]byte{}})
	_, err := s.Open("missing.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoSuchKey)
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestStore_DrivesPipeline(t *testing.T) {
	objs := &memObjects{data: map[string][]byte{
		"hourly_obs.csv": []byte("obs_year,obs_doy,obs_hour,obs_hrly_temp_air,obs_hrly_relative_humidity,obs_hrly_vpd,obs_hrly_sol_rad_total\n" +
			"2024,150,100,30.0,50,2.0,500\n"),
		"hourly_derived.csv": []byte("obs_year,obs_doy,obs_hour,obs_hrly_derived_heatstress_cottonC,obs_hrly_derived_heatstress_cottonF\n" +
			"2024,150,100,,\n"),
		"daily_obs.csv":     []byte("obs_year,obs_doy,obs_dyly_temp_air_mean,obs_dyly_temp_air_max,obs_dyly_temp_air_min,obs_dyly_relative_humidity_mean,obs_dyly_vpd_mean,obs_dyly_sol_rad_total\n"),
		"daily_derived.csv": []byte("obs_year,obs_doy,obs_dyly_derived_heatstress_cotton_meanC\n"),
	}}
	s := newTestStore(t, objs)

	p := pipeline.New(s, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetrics(), nil)
	report, err := p.Run(context.Background(), pipeline.Paths{
		HourlyObs:     "hourly_obs.csv",
		HourlyDerived: "hourly_derived.csv",
		DailyObs:      "daily_obs.csv",
		DailyDerived:  "daily_derived.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, "hourly_derived_updated.csv", report.HourlyOutput)
	assert.Equal(t, "obs_year,obs_doy,obs_hour,obs_hrly_derived_heatstress_cottonC,obs_hrly_derived_heatstress_cottonF\r\n2024,150,100,27.7,81.8\r\n",
		string(objs.data["hourly_derived_updated.csv"]))
	assert.Contains(t, objs.data, "daily_derived_updated.csv")
}
