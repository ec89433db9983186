package main

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/netshellpro/netshellpro/pkg/logger"
)

const debounceInterval = 300 * time.Millisecond

// watchFile 监听单个文件，变更经防抖后调用 onChange；ctx 结束时退出
func watchFile(ctx context.Context, name, path string, onChange func()) {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("File not found, skip watch", "watch", name, "path", path, "error", err)
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Watch init failed", "watch", name, "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warn("Watch add failed", "watch", name, "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, onChange)
			}
			// 编辑器改名保存后原监听失效，重新加入
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				_ = watcher.Add(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error", "watch", name, "error", err)
		}
	}
}
