package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cadenza/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Reader reads track attributes from an audio file. The scanner treats it
// as an opaque capability: a failed read means the file is skipped.
type Reader interface {
	Read(filePath string) (models.Track, error)
}

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Read extracts metadata from an audio file. Track identity is derived
// from the file path, so re-reading an unchanged file yields the same ID.
func (e *Extractor) Read(filePath string) (models.Track, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return models.Track{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to get file stats")
		return models.Track{}, err
	}

	// Calculate duration
	duration, err := e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	track := models.Track{
		ID:       models.TrackID(filePath),
		Duration: duration,
		FilePath: filePath,
		FileSize: stat.Size(),
		ModTime:  stat.ModTime().UTC(),
	}

	// Extract metadata using the tag library
	meta, err := tag.ReadFrom(file)
	if err != nil {
		// If metadata extraction fails, use filename
		filename := filepath.Base(filePath)
		name := strings.TrimSuffix(filename, filepath.Ext(filename))

		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to extract metadata, using filename")

		track.Title = name
		track.Artist = "Unknown Artist"
		track.Album = "Unknown Album"
		return track, nil
	}

	track.Title = meta.Title()
	if track.Title == "" {
		track.Title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	track.Artist = meta.Artist()
	if track.Artist == "" {
		track.Artist = "Unknown Artist"
	}

	track.Album = meta.Album()
	if track.Album == "" {
		track.Album = "Unknown Album"
	}

	track.TrackNumber, _ = meta.Track()
	track.Year = meta.Year()
	track.Genre = meta.Genre()

	processingTime := time.Since(startTime)
	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"title":          track.Title,
		"artist":         track.Artist,
		"album":          track.Album,
		"duration":       track.Duration,
		"processingTime": processingTime,
	}).Debug("Successfully extracted metadata")

	return track, nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return e.durationFLAC(filePath)
	case ".wav":
		return e.durationWAV(filePath)
	default:
		return 0, fmt.Errorf("no duration probe for format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return e.estimateFromFileSize(path, 192000) // assume 192 kbps = 192000 bps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via STREAMINFO metadata block
func (e *Extractor) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read header
func (e *Extractor) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	// Approximate using file size; full sample count may require decoding all samples.
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (e *Extractor) estimateFromFileSize(path string, bitrate int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// GetContentType returns the MIME type for an audio file
func (e *Extractor) GetContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
