package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vnmarket/internal/scoring"
)

type fakeUploader struct {
	objects map[string]string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[*input.Bucket+"/"+*input.Key] = string(body)
	return &manager.UploadOutput{}, nil
}

func testSnapshot() *scoring.Snapshot {
	all := []scoring.Ranking{
		{Symbol: "AAA", FinalScore: 0.9, Features: scoring.Features{Momentum: 0.1, VolumeStrength: 1.3, Volatility: 0.5, ForeignInterest: 0.2, RecentChange: 0.05}},
		{Symbol: "BBB", FinalScore: 0.5, Features: scoring.Features{Momentum: 0, VolumeStrength: 1.1, Volatility: 0.5, ForeignInterest: 0.2, RecentChange: 0.05}},
		{Symbol: "CCC", FinalScore: 0.2, Features: scoring.Features{Momentum: -0.1, VolumeStrength: 0.7, Volatility: 0.2, ForeignInterest: 0.1, RecentChange: -0.02}},
	}
	return &scoring.Snapshot{Market: "HOSE", All: all, Top: all[:1]}
}

func TestExporter_FileSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "exports"))
	require.NoError(t, err)

	locations, err := NewExporter(sink, 1, zerolog.Nop()).Export(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Len(t, locations, 4)

	read := func(name string) []string {
		data, err := os.ReadFile(locations[name])
		require.NoError(t, err)
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	assert.Len(t, read(FileAllStocks), 4)
	assert.Len(t, read(FileTopStocks), 2)

	dropped := read(FileAllStocksDrop)
	require.Len(t, dropped, 3)
	assert.True(t, strings.HasPrefix(dropped[1], "AAA,"))
	assert.True(t, strings.HasPrefix(dropped[2], "CCC,"))

	topDropped := read(FileTopDropped)
	require.Len(t, topDropped, 2)
	assert.Equal(t, strings.Join(scoring.Columns, ","), topDropped[0])

	entries, err := os.ReadDir(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	assert.Len(t, entries, 4, "temp files must not be left behind")
}

func TestExporter_S3Sink(t *testing.T) {
	uploader := &fakeUploader{}
	sink := NewS3SinkWithUploader(uploader, "bucket", "/rankings/")

	locations, err := NewExporter(sink, 20, zerolog.Nop()).Export(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/rankings/all_stocks.csv", locations[FileAllStocks])
	require.Contains(t, uploader.objects, "bucket/rankings/top_stocks.csv")
	assert.Contains(t, uploader.objects["bucket/rankings/top_stocks.csv"], "AAA,0.9,")
	assert.Equal(t, "s3", sink.Kind())
}

func TestExporter_UploadFailure(t *testing.T) {
	sink := NewS3SinkWithUploader(&fakeUploader{err: errors.New("access denied")}, "bucket", "")
	_, err := NewExporter(sink, 20, zerolog.Nop()).Export(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestExporter_NilSnapshot(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	_, err = NewExporter(sink, 0, zerolog.Nop()).Export(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Config{})
	assert.Error(t, err)
}
