package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/echoflow/internal/config"
	"github.com/seaward/echoflow/internal/echo"
	"github.com/seaward/echoflow/internal/echo/echotest"
	"github.com/seaward/echoflow/internal/layout"
	"github.com/seaward/echoflow/internal/models"
	"github.com/seaward/echoflow/internal/pipeline"
)

var base = time.Date(2017, 7, 24, 16, 0, 0, 0, time.UTC)

// fakeSource serves raw files from memory in insertion order.
type fakeSource struct {
	keys  []string
	files map[string][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{files: make(map[string][]byte)}
}

func (s *fakeSource) add(key string, data []byte) {
	s.keys = append(s.keys, key)
	s.files[key] = data
}

func (s *fakeSource) List(context.Context) ([]models.RemoteFile, error) {
	out := make([]models.RemoteFile, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, models.RemoteFile{Key: k, Size: int64(len(s.files[k]))})
	}
	return out, nil
}

func (s *fakeSource) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func testConfig(dir string) config.Config {
	return config.Config{
		SurveyLabel:    "HakeSurvey",
		RangeBinMeters: 20,
		PingBin:        20 * time.Second,
		PingBinLabel:   "20s",
		StartDate:      time.Date(2017, 7, 24, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2017, 7, 26, 0, 0, 0, 0, time.UTC),
		OutputBase:     dir,
	}
}

func rawFile(start time.Time) []byte {
	cfg := echotest.Channel()
	pings := []echo.Ping{
		echotest.Ping(start, -100, -110, -120),
		echotest.Ping(start.Add(time.Second), -101, -111, -121),
	}
	fixes := []echo.PositionFix{
		echotest.Fix(start, 46.25, -124.5),
		echotest.Fix(start.Add(2*time.Second), 46.26, -124.51),
	}
	return echotest.Encode(cfg, pings, fixes)
}

func TestRunProcessesMatchingFiles(t *testing.T) {
	cfg := testConfig(t.TempDir())
	lay, err := layout.Build(cfg)
	require.NoError(t, err)

	src := newFakeSource()
	src.add("raw/Summer2017-D20170724-T000000.raw", rawFile(base))
	src.add("raw/Summer2017-D20170725-T000000.raw", rawFile(base.Add(time.Hour)))
	src.add("raw/Summer2017-D20170730-T000000.raw", rawFile(base)) // outside range

	report, err := pipeline.Run(context.Background(), cfg, src, lay)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 0, report.Failed())
	assert.NotEmpty(t, report.RunID)

	// Each success leaves exactly three outputs sharing the stem.
	for _, o := range report.Outcomes {
		require.Len(t, o.Outputs, 3)
		assert.Equal(t, lay.ProductPath(o.Stem), o.Outputs[0])
		assert.Equal(t, lay.LonPath(o.Stem), o.Outputs[1])
		assert.Equal(t, lay.LatPath(o.Stem), o.Outputs[2])
		for _, path := range o.Outputs {
			_, err := os.Stat(path)
			assert.NoError(t, err, path)
		}
	}
}

func TestRunContinuesPastFailedFile(t *testing.T) {
	cfg := testConfig(t.TempDir())
	lay, err := layout.Build(cfg)
	require.NoError(t, err)

	good := rawFile(base)
	src := newFakeSource()
	src.add("raw/Summer2017-D20170724-T000000.raw", echotest.Truncate(good, 3))
	src.add("raw/Summer2017-D20170725-T000000.raw", rawFile(base.Add(time.Hour)))

	report, err := pipeline.Run(context.Background(), cfg, src, lay)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	failed := report.Outcomes[0]
	assert.Error(t, failed.Err)
	assert.ErrorContains(t, failed.Err, "convert")
	assert.Empty(t, failed.Outputs)

	ok := report.Outcomes[1]
	require.True(t, ok.OK())
	_, err = os.Stat(lay.ProductPath(ok.Stem))
	assert.NoError(t, err)
}

func TestRunRejectsStemCollision(t *testing.T) {
	cfg := testConfig(t.TempDir())
	lay, err := layout.Build(cfg)
	require.NoError(t, err)

	src := newFakeSource()
	src.add("a/Summer2017-D20170724-T000000.raw", rawFile(base))
	src.add("b/Summer2017-D20170724-T000000.raw", rawFile(base))

	_, err = pipeline.Run(context.Background(), cfg, src, lay)
	assert.ErrorContains(t, err, "stem collision")
}

func TestRunEmptyMatchYieldsEmptyReport(t *testing.T) {
	cfg := testConfig(t.TempDir())
	lay, err := layout.Build(cfg)
	require.NoError(t, err)

	src := newFakeSource()
	src.add("raw/Summer2017-D20170801-T000000.raw", rawFile(base))

	report, err := pipeline.Run(context.Background(), cfg, src, lay)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
}
