package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"time"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/video"
	"github.com/your-org/facewatch/internal/vision"
)

// Notifier is the part of notify.Notifier the loop needs.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) *models.Notification
}

type Settings struct {
	ProcessEveryN          int
	Scale                  float64
	Tolerance              float64
	KnownCooldown          time.Duration
	UnknownCooldown        time.Duration
	ReloadInterval         time.Duration
	MaxConsecutiveFailures int
	LoopPause              time.Duration
	ErrorPause             time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ProcessEveryN:          cfg.Recognition.ProcessEveryNFrames,
		Scale:                  cfg.Recognition.Scale,
		Tolerance:              cfg.Recognition.Tolerance,
		KnownCooldown:          cfg.Recognition.KnownCooldown(),
		UnknownCooldown:        cfg.Recognition.UnknownCooldown(),
		ReloadInterval:         cfg.Recognition.ReloadInterval(),
		MaxConsecutiveFailures: cfg.Video.MaxConsecutiveFailures,
		LoopPause:              50 * time.Millisecond,
		ErrorPause:             time.Second,
	}
}

// Loop pulls frames, recognizes faces and records and announces visitors,
// suppressing repeats within the cooldown windows.
type Loop struct {
	source   video.Source
	rec      vision.Recognizer
	store    storage.Store
	images   storage.ImageStore
	notifier Notifier
	cfg      Settings
	now      func() time.Time

	cooldowns  *Cooldowns
	known      []models.KnownFace
	knownVecs  [][]float32
	lastReload time.Time
	frames     int
}

func New(source video.Source, rec vision.Recognizer, store storage.Store, images storage.ImageStore, notifier Notifier, cfg Settings) *Loop {
	if cfg.ProcessEveryN < 1 {
		cfg.ProcessEveryN = 1
	}
	maxWindow := cfg.KnownCooldown
	if cfg.UnknownCooldown > maxWindow {
		maxWindow = cfg.UnknownCooldown
	}
	return &Loop{
		source:    source,
		rec:       rec,
		store:     store,
		images:    images,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		cooldowns: NewCooldowns(maxWindow),
	}
}

// SetClock replaces the time source used for cooldowns and crop names.
func (l *Loop) SetClock(now func() time.Time) { l.now = now }

type frameError struct{ err error }

func (e *frameError) Error() string { return "get frame: " + e.err.Error() }
func (e *frameError) Unwrap() error { return e.err }

// Run processes frames until ctx is done, the source is released or the
// source keeps failing past the configured threshold. The source is always
// released on return.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Release(); err != nil {
			slog.Warn("release video source", "error", err)
		}
	}()

	if err := l.ReloadKnownFaces(ctx); err != nil {
		slog.Warn("load known faces", "error", err)
	}
	if err := l.source.Connect(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, video.ErrClosed) {
			return nil
		}
		if errors.Is(err, video.ErrUnsupportedBackend) {
			return err
		}
		// GetFrame keeps reconnecting on its own
		slog.Warn("initial video connect failed", "error", err)
	}

	slog.Info("monitor started",
		"known_persons", len(l.known),
		"process_every_n_frames", l.cfg.ProcessEveryN,
		"scale", l.cfg.Scale,
		"tolerance", l.cfg.Tolerance,
	)

	failures := 0
	for {
		if ctx.Err() != nil {
			slog.Info("monitor stopping")
			return nil
		}

		err := l.iterate(ctx)
		var fe *frameError
		switch {
		case err == nil:
			failures = 0
			sleepCtx(ctx, l.cfg.LoopPause)
			continue
		case ctx.Err() != nil:
			slog.Info("monitor stopping")
			return nil
		case errors.Is(err, video.ErrClosed):
			slog.Info("video source closed, monitor stopping")
			return nil
		case errors.Is(err, video.ErrUnsupportedBackend):
			return err
		case errors.As(err, &fe):
			failures++
			slog.Warn("failed to get frame, retrying", "error", err, "consecutive_failures", failures)
			if l.cfg.MaxConsecutiveFailures > 0 && failures > l.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("video source unavailable after %d consecutive failures: %w", failures, err)
			}
		default:
			slog.Error("error in monitor loop", "error", err)
		}
		sleepCtx(ctx, l.cfg.ErrorPause)
	}
}

func (l *Loop) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	img, err := l.source.GetFrame(ctx)
	if err != nil {
		if errors.Is(err, video.ErrClosed) || errors.Is(err, video.ErrUnsupportedBackend) {
			return err
		}
		return &frameError{err: err}
	}

	l.frames++
	if l.frames%l.cfg.ProcessEveryN != 0 {
		return nil
	}

	if l.cfg.ReloadInterval > 0 && l.now().Sub(l.lastReload) >= l.cfg.ReloadInterval {
		if err := l.ReloadKnownFaces(ctx); err != nil {
			slog.Warn("reload known faces", "error", err)
		}
	}
	return l.ProcessFrame(ctx, img)
}

// ReloadKnownFaces refreshes the in-memory copy of enrolled embeddings.
func (l *Loop) ReloadKnownFaces(ctx context.Context) error {
	faces, err := l.store.KnownFaces(ctx)
	if err != nil {
		return err
	}
	vecs := make([][]float32, len(faces))
	for i := range faces {
		vecs[i] = faces[i].Embedding
	}
	if len(faces) != len(l.known) {
		slog.Info("known faces reloaded", "count", len(faces))
	}
	l.known, l.knownVecs = faces, vecs
	l.lastReload = l.now()
	return nil
}

func (l *Loop) upscale() float64 {
	if l.cfg.Scale > 0 && l.cfg.Scale < 1 {
		return 1 / l.cfg.Scale
	}
	return 1
}

// ProcessFrame runs recognition on one full-resolution frame.
func (l *Loop) ProcessFrame(ctx context.Context, img image.Image) error {
	observability.FramesProcessed.Inc()

	small := vision.Downscale(img, l.cfg.Scale)
	boxes, err := l.rec.DetectFaces(small)
	if err != nil {
		return fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return nil
	}
	observability.FacesDetected.Add(float64(len(boxes)))

	embeddings, err := l.rec.Embed(small, boxes)
	if err != nil {
		return fmt.Errorf("embed faces: %w", err)
	}

	for i, emb := range embeddings {
		kf, dist, matched := vision.Match(l.known, l.rec.Distance(l.knownVecs, emb), l.cfg.Tolerance)
		now := l.now()

		key, window, kind := UnknownKey, l.cfg.UnknownCooldown, models.KindUnknown
		if matched {
			key, window, kind = strconv.FormatInt(kf.PersonID, 10), l.cfg.KnownCooldown, models.KindKnown
			observability.FacesRecognized.Inc()
		} else {
			observability.UnknownFaces.Inc()
		}

		if !l.cooldowns.Allow(key, window, now) {
			observability.DetectionsSuppressed.WithLabelValues(kind).Inc()
			continue
		}

		label := "Unknown"
		if matched {
			label = kf.Name
		}
		name, data := l.saveCrop(ctx, img, vision.ScaleRect(boxes[i], l.upscale()), now, label)

		if matched {
			l.recordVisit(ctx, kf, vision.Confidence(dist), name, data)
		} else {
			l.recordSighting(ctx, name, data)
		}
	}
	return nil
}

func (l *Loop) saveCrop(ctx context.Context, img image.Image, box image.Rectangle, now time.Time, label string) (string, []byte) {
	crop := vision.CropFace(img, box)
	if crop == nil {
		return "", nil
	}
	data, err := vision.EncodeJPEG(crop, 90)
	if err != nil {
		slog.Warn("encode face crop", "error", err)
		return "", nil
	}
	name := storage.ImageName(now, label)
	if err := l.images.Save(ctx, name, data); err != nil {
		slog.Warn("save face crop", "name", name, "error", err)
		return "", data
	}
	return name, data
}

func (l *Loop) recordVisit(ctx context.Context, kf *models.KnownFace, confidence float64, imageName string, data []byte) {
	if _, err := l.store.LogVisit(ctx, kf.PersonID, confidence, imageName); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// deleted since the last reload
			slog.Info("recognized person no longer exists", "person_id", kf.PersonID)
			if err := l.ReloadKnownFaces(ctx); err != nil {
				slog.Warn("reload known faces", "error", err)
			}
			return
		}
		slog.Error("log visit", "person_id", kf.PersonID, "error", err)
	} else {
		observability.VisitsLogged.Inc()
	}

	id := kf.PersonID
	l.notifier.Notify(ctx, notify.Event{
		Kind:       models.KindKnown,
		Title:      kf.Name + " Detected",
		Message:    kf.Name + " arrived at entrance",
		PersonID:   &id,
		Confidence: &confidence,
		ImageName:  imageName,
		Image:      data,
	})
	slog.Info("recognized visitor", "name", kf.Name, "confidence", fmt.Sprintf("%.2f%%", confidence*100))
}

func (l *Loop) recordSighting(ctx context.Context, imageName string, data []byte) {
	if _, err := l.store.LogSighting(ctx, imageName); err != nil {
		slog.Error("log unknown visitor", "error", err)
	} else {
		observability.SightingsLogged.Inc()
	}

	l.notifier.Notify(ctx, notify.Event{
		Kind:      models.KindUnknown,
		Title:     "Unknown Person Detected",
		Message:   "Unknown visitor at entrance - please identify",
		ImageName: imageName,
		Image:     data,
	})
	slog.Info("unknown visitor detected")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
