package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWriterRenamesStandardKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupWriter(&buf, " marketd ", "test", slog.LevelInfo)
	logger.Info("offering listed", MaskField("authToken", "secret"), slog.String("reason", "ok"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "offering listed", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "marketd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["authToken"])
	require.Equal(t, "ok", line["reason"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWriterHonoursLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupWriter(&buf, "marketd", "", slog.LevelWarn)
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "", MaskField("authToken", "").Value.String())
	require.Equal(t, RedactedValue, MaskField("dsn", "postgres://u:p@h/db").Value.String())
	require.Equal(t, "boom", MaskField("error", "boom").Value.String())
	require.True(t, IsAllowlisted(" offeringId "))
	require.False(t, IsAllowlisted("authToken"))
}

func TestSetupWriterRedactsCredentialKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupWriter(&buf, "marketd", "", slog.LevelInfo).With("component", "rpc")
	logger.Info("unit of work committed",
		slog.String("operation", "buy_nft"),
		slog.String("offeringId", "7"),
		slog.String("tokenId", "SellableNFT"),
		slog.String("instructionRoot", "0xabc"),
		slog.String("jwtSecret", "hunter2"),
		slog.String("indexerDsn", "postgres://u:p@h/db"),
		slog.String("Authorization", "Bearer abc"),
		slog.String("emptyToken", ""),
		slog.Int("tokenCount", 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "rpc", line["component"])
	require.Equal(t, "buy_nft", line["operation"])
	require.Equal(t, "7", line["offeringId"])
	require.Equal(t, "SellableNFT", line["tokenId"])
	require.Equal(t, "0xabc", line["instructionRoot"])
	require.Equal(t, RedactedValue, line["jwtSecret"])
	require.Equal(t, RedactedValue, line["indexerDsn"])
	require.Equal(t, RedactedValue, line["Authorization"])
	require.Equal(t, "", line["emptyToken"])
	require.Equal(t, float64(3), line["tokenCount"])
}

func TestOutputTeesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.log")
	var stdout bytes.Buffer
	w, closer := Output(&stdout, FileConfig{Path: path, MaxSizeMB: 1})
	_, err := w.Write([]byte("{\"message\":\"hello\"}\n"))
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, stdout.String(), string(contents))
}

func TestOutputWithoutFile(t *testing.T) {
	var stdout bytes.Buffer
	w, closer := Output(&stdout, FileConfig{})
	require.Same(t, &stdout, w)
	require.NoError(t, closer.Close())
}
