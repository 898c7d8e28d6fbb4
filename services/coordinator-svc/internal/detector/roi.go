package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// Задержка перед перечитыванием файла: редакторы пишут файл
// несколькими событиями подряд
const reloadDebounce = 200 * time.Millisecond

// Point точка полигона в пиксельных координатах кадра
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// CameraROI зона интереса одной камеры: полигон в пикселях кадра
// и реальные размеры наблюдаемого участка дороги
type CameraROI struct {
	Polygon     []Point `yaml:"polygon" json:"polygon"`
	RoadLengthM float64 `yaml:"road_length_m" json:"road_length_m"`
	RoadWidthM  float64 `yaml:"road_width_m" json:"road_width_m"`
}

// roiFile формат YAML-реестра
type roiFile struct {
	Cameras map[string]CameraROI `yaml:"cameras"`
}

// ROIRegistry реестр зон интереса камер. Снимок реестра подменяется
// атомарно, читатели никогда не видят частично загруженное состояние.
type ROIRegistry struct {
	path    string
	cameras atomic.Pointer[map[string]CameraROI]

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewROIRegistry загружает реестр из файла
func NewROIRegistry(path string) (*ROIRegistry, error) {
	r := &ROIRegistry{
		path: path,
		done: make(chan struct{}),
	}

	if err := r.reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Lookup возвращает зону интереса камеры
func (r *ROIRegistry) Lookup(cameraID string) (*CameraROI, error) {
	cameras := r.cameras.Load()
	roi, ok := (*cameras)[cameraID]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownCamera,
			fmt.Sprintf("camera %q is not present in the ROI registry", cameraID))
	}
	return &roi, nil
}

// Cameras возвращает список известных камер
func (r *ROIRegistry) Cameras() []string {
	cameras := r.cameras.Load()
	ids := make([]string, 0, len(*cameras))
	for id := range *cameras {
		ids = append(ids, id)
	}
	return ids
}

// Watch запускает горячую перезагрузку реестра при изменении файла.
// Слежение ведётся за каталогом: редакторы заменяют файл через rename,
// и watch на сам файл после этого теряется.
func (r *ROIRegistry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to watch ROI directory: %w", err)
	}

	r.watcher = watcher
	go r.watchLoop()

	logger.Log.Info("ROI registry hot-reload enabled", "path", r.path)
	return nil
}

// Close останавливает слежение за файлом
func (r *ROIRegistry) Close() {
	if r.watcher != nil {
		close(r.done)
		r.watcher.Close() //nolint:errcheck // shutdown path
	}
}

func (r *ROIRegistry) watchLoop() {
	var timer *time.Timer
	target := filepath.Clean(r.path)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if err := r.reload(); err != nil {
					logger.Log.Error("ROI registry reload failed, keeping previous snapshot",
						"path", r.path, "error", err)
					return
				}
				logger.Log.Info("ROI registry reloaded", "path", r.path, "cameras", len(r.Cameras()))
			})

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("ROI watcher error", "error", err)

		case <-r.done:
			return
		}
	}
}

func (r *ROIRegistry) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read ROI registry: %w", err)
	}

	var file roiFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse ROI registry: %w", err)
	}

	for id, roi := range file.Cameras {
		if roi.RoadLengthM <= 0 || roi.RoadWidthM <= 0 {
			return fmt.Errorf("camera %q: road dimensions must be positive", id)
		}
		if len(roi.Polygon) > 0 && len(roi.Polygon) < 3 {
			return fmt.Errorf("camera %q: polygon needs at least 3 points", id)
		}
	}

	cameras := file.Cameras
	if cameras == nil {
		cameras = map[string]CameraROI{}
	}
	r.cameras.Store(&cameras)
	return nil
}
