// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听单个源文件的变更
type FileMonitor struct {
	target  string
	watcher *fsnotify.Watcher
	lastMod time.Time
	mu      sync.Mutex
}

// NewFileMonitor 监听文件所在目录，编辑器常以重命名方式保存文件
func NewFileMonitor(target string) (*FileMonitor, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		target:  abs,
		watcher: watcher,
	}
	if info, err := os.Stat(abs); err == nil {
		m.lastMod = info.ModTime()
	}
	return m, nil
}

// Watch 阻塞直到ctx取消或watcher关闭，目标文件有新的修改时调用handler
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != m.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			changed := info.ModTime().After(m.lastMod)
			if changed {
				m.lastMod = info.ModTime()
			}
			m.mu.Unlock()

			if changed {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close 停止监听
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
