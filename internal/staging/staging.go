// Package staging manages short-lived scan session data such as raw OCR output and image previews.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockscan/stockscan/internal/kvstore"
	"github.com/stockscan/stockscan/internal/shared"
)

const (
	// Prefix is shared by every staging key.
	Prefix = "staging:"

	DefaultMaxAge        = 24 * time.Hour
	DefaultImageMaxBytes = 1 << 20

	deleteBatchSize = 100
)

// Kind names one staged artefact of a scan session.
type Kind string

const (
	KindScanResult      Kind = "scan_result"
	KindOriginalImage   Kind = "original_image"
	KindCompressedImage Kind = "compressed_image"
)

// SessionKinds lists every artefact cleared with a session.
var SessionKinds = []Kind{KindScanResult, KindOriginalImage, KindCompressedImage}

// ParseImageKind maps the short route names onto image kinds.
func ParseImageKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original", string(KindOriginalImage):
		return KindOriginalImage, true
	case "compressed", string(KindCompressedImage):
		return KindCompressedImage, true
	}
	return "", false
}

var (
	// ErrScanIDRequired is returned when a write or read is attempted without a session id.
	ErrScanIDRequired = fmt.Errorf("staging: scan id required: %w", shared.ErrValidation)
	// ErrInvalidScanID is returned for ids that could escape the key namespace. '_' separates
	// the scan id from the user id in stored keys, so it is not allowed here.
	ErrInvalidScanID = fmt.Errorf("staging: scan id may only contain letters, digits, '-' and '.': %w", shared.ErrValidation)
	// ErrScanResultNotFound is returned when no scan result is staged for a session.
	ErrScanResultNotFound = fmt.Errorf("staging: scan result %w", shared.ErrNotFound)
)

var (
	scanIDPattern = regexp.MustCompile(`^[A-Za-z0-9.-]{1,128}$`)
	// staging:<kind>:<prefix>-<13 digit unix millis>[-...][_<user>]
	keyTimestampPattern = regexp.MustCompile(`^staging:[a-z_]+:[a-z]+-(\d{13})(?:[-_.]|$)`)
)

// BaseKey returns the un-namespaced key of one artefact.
func BaseKey(kind Kind, scanID string) string {
	return Prefix + string(kind) + ":" + scanID
}

// NewScanID returns a session id embedding its creation time.
func NewScanID(now time.Time) string {
	return fmt.Sprintf("scan-%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// TimestampFromKey extracts the creation time embedded in a staging key.
func TimestampFromKey(key string) (time.Time, bool) {
	m := keyTimestampPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Config controls retention.
type Config struct {
	MaxAge        time.Duration
	ImageMaxBytes int
}

// Recorder receives janitor events for metrics.
type Recorder interface {
	ObserveStagingRemoved(reason string, count int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStagingRemoved(string, int) {}

// SweepReport summarises one sweep.
type SweepReport struct {
	Scanned     int  `json:"scanned"`
	Expired     int  `json:"expired"`
	Unparseable int  `json:"unparseable"`
	Kept        int  `json:"kept"`
	Aggressive  bool `json:"aggressive"`
}

// Removed is the number of deleted entries.
func (r SweepReport) Removed() int {
	if r.Aggressive {
		return r.Expired + r.Unparseable
	}
	return r.Expired
}

// Janitor stages and garbage-collects scan session data.
type Janitor struct {
	kv      *kvstore.Adapter
	logger  *slog.Logger
	cfg     Config
	metrics Recorder
	now     func() time.Time
}

// NewJanitor constructs Janitor. Zero config values fall back to the defaults.
func NewJanitor(kv *kvstore.Adapter, logger *slog.Logger, cfg Config, metrics Recorder) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.ImageMaxBytes <= 0 {
		cfg.ImageMaxBytes = DefaultImageMaxBytes
	}
	return &Janitor{
		kv:      kv,
		logger:  logger,
		cfg:     cfg,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewScanID returns a fresh session id using the janitor clock.
func (j *Janitor) NewScanID() string {
	return NewScanID(j.now())
}

// ClearSession removes every artefact of one scan session. An empty scanID is a logged no-op.
func (j *Janitor) ClearSession(ctx context.Context, userID, scanID string) error {
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		j.logger.Warn("staging: clear session called without scan id", slog.String("user_id", userID))
		return nil
	}
	if err := validateScanID(scanID); err != nil {
		j.logger.Warn("staging: clear session rejected scan id",
			slog.String("user_id", userID),
			slog.String("scan_id", scanID))
		return err
	}
	var errs []error
	for _, kind := range SessionKinds {
		if err := j.kv.Remove(ctx, BaseKey(kind, scanID), userID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	j.metrics.ObserveStagingRemoved("session", len(SessionKinds))
	j.logger.Debug("staging session cleared", slog.String("user_id", userID), slog.String("scan_id", scanID))
	return nil
}

// Sweep removes staging entries older than MaxAge. Aggressive sweeps also remove entries
// whose key carries no parseable timestamp.
func (j *Janitor) Sweep(ctx context.Context, aggressive bool) (SweepReport, error) {
	report := SweepReport{Aggressive: aggressive}
	if !j.kv.Available() {
		return report, nil
	}
	store := j.kv.Store()
	keys, err := store.Keys(ctx, Prefix)
	if err != nil {
		return report, fmt.Errorf("staging: list keys: %w", err)
	}
	report.Scanned = len(keys)

	cutoff := j.now().Add(-j.cfg.MaxAge)
	var expired, unparseable []string
	for _, key := range keys {
		created, ok := TimestampFromKey(key)
		switch {
		case !ok:
			report.Unparseable++
			if aggressive {
				unparseable = append(unparseable, key)
			} else {
				report.Kept++
			}
		case created.Before(cutoff):
			report.Expired++
			expired = append(expired, key)
		default:
			report.Kept++
		}
	}

	// Deletes go straight to the store so a sweep never triggers capacity recovery.
	if err := deleteBatched(ctx, store, expired); err != nil {
		return report, fmt.Errorf("staging: delete expired: %w", err)
	}
	j.metrics.ObserveStagingRemoved("expired", len(expired))
	if err := deleteBatched(ctx, store, unparseable); err != nil {
		return report, fmt.Errorf("staging: delete unparseable: %w", err)
	}
	j.metrics.ObserveStagingRemoved("unparseable", len(unparseable))

	if report.Removed() > 0 || aggressive {
		j.logger.Info("staging sweep complete",
			slog.Bool("aggressive", aggressive),
			slog.Int("scanned", report.Scanned),
			slog.Int("removed", report.Removed()),
			slog.Int("kept", report.Kept))
	}
	return report, nil
}

// RecoverCapacity frees space after a capacity failure. It matches kvstore.RecoveryFunc.
func (j *Janitor) RecoverCapacity(ctx context.Context) error {
	_, err := j.Sweep(ctx, true)
	return err
}

// StageScanResult stores the raw extraction output of a session.
func (j *Janitor) StageScanResult(ctx context.Context, userID, scanID string, payload json.RawMessage) error {
	if err := validateScanID(scanID); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("staging: scan result is not valid JSON: %w", shared.ErrValidation)
	}
	return kvstore.Write(ctx, j.kv, BaseKey(KindScanResult, scanID), userID, payload)
}

// LoadScanResult returns the staged extraction output of a session.
func (j *Janitor) LoadScanResult(ctx context.Context, userID, scanID string) (json.RawMessage, error) {
	if err := validateScanID(scanID); err != nil {
		return nil, err
	}
	out, err := kvstore.ReadObject[json.RawMessage](ctx, j.kv, BaseKey(KindScanResult, scanID), userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrScanResultNotFound
	}
	return *out, nil
}

// StageImage stores an image preview. Previews are optional: oversize images and capacity
// failures are logged and reported as not stored instead of failing the scan.
func (j *Janitor) StageImage(ctx context.Context, userID, scanID string, kind Kind, dataURI string) (bool, error) {
	if err := validateScanID(scanID); err != nil {
		return false, err
	}
	if kind != KindOriginalImage && kind != KindCompressedImage {
		return false, fmt.Errorf("staging: unknown image kind %q: %w", kind, shared.ErrValidation)
	}
	if len(dataURI) > j.cfg.ImageMaxBytes {
		j.logger.Warn("staging: image preview too large, skipping",
			slog.String("scan_id", scanID),
			slog.String("kind", string(kind)),
			slog.Int("bytes", len(dataURI)),
			slog.Int("limit", j.cfg.ImageMaxBytes))
		return false, nil
	}
	err := kvstore.Write(ctx, j.kv, BaseKey(kind, scanID), userID, dataURI)
	if errors.Is(err, kvstore.ErrCapacityExceeded) {
		j.logger.Warn("staging: no capacity for image preview, skipping",
			slog.String("scan_id", scanID),
			slog.String("kind", string(kind)))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func validateScanID(scanID string) error {
	if scanID == "" {
		return ErrScanIDRequired
	}
	if !scanIDPattern.MatchString(scanID) {
		return ErrInvalidScanID
	}
	return nil
}

func deleteBatched(ctx context.Context, store kvstore.Store, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := store.Delete(ctx, keys[start:end]...); err != nil {
			return err
		}
	}
	return nil
}
