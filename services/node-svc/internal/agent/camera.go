package agent

import (
	"fmt"
	"os"
	"sort"

	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// Camera источник кадров по рёбрам перекрёстка
type Camera interface {
	Capture(edgeID string) ([]byte, error)
	Edges() []string
}

// FileCamera читает кадры из файлов: ребро -> путь к изображению.
// Файл перечитывается на каждый захват, внешний процесс может
// подменять кадры на лету.
type FileCamera struct {
	frames map[string]string
}

// NewFileCamera создаёт камеру поверх файловой привязки
func NewFileCamera(frames map[string]string) *FileCamera {
	return &FileCamera{frames: frames}
}

// Capture возвращает текущий кадр ребра
func (c *FileCamera) Capture(edgeID string) ([]byte, error) {
	path, ok := c.frames[edgeID]
	if !ok {
		return nil, fmt.Errorf("no camera configured for edge %q", edgeID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame for edge %q: %w", edgeID, err)
	}
	return data, nil
}

// Edges возвращает отсортированный список рёбер с камерами
func (c *FileCamera) Edges() []string {
	ids := make([]string, 0, len(c.frames))
	for id := range c.frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// captureAll снимает кадры со всех камер; рёбра без доступного кадра
// пропускаются с записью в лог
func captureAll(cam Camera) map[string][]byte {
	images := make(map[string][]byte)
	for _, edgeID := range cam.Edges() {
		frame, err := cam.Capture(edgeID)
		if err != nil {
			logger.Log.Warn("Frame capture failed", "edge_id", edgeID, "error", err)
			continue
		}
		images[edgeID] = frame
	}
	return images
}
