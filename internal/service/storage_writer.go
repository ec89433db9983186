package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// StorageWriter 抽象存储写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, content string, contentType string) (StoredObject, error)
}

// StorageMeta 写入元数据
type StorageMeta struct {
	DateYYYYMMDD string
	// TimeHHMMSS 执行开始时间，格式为 HHMMSS
	TimeHHMMSS string
	RunID      string
	DeviceName string
	DeviceIP   string
	// Name 文件名（可带扩展名）
	Name    string
	Backend string // local|minio
}

// StoredObject 写入结果
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// NewStorageWriter 根据配置创建写入器（委派到本地或 MinIO）
func NewStorageWriter(cfg *config.Config) StorageWriter {
	dw := &DelegatingStorageWriter{local: &LocalStorageWriter{cfg: cfg}}
	if cfg.Report.Backend == "minio" {
		dw.minio = initMinioWriter(cfg)
	}
	return dw
}

// DelegatingStorageWriter 按后端路由写入
type DelegatingStorageWriter struct {
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta StorageMeta, content string, contentType string) (StoredObject, error) {
	backend := strings.ToLower(strings.TrimSpace(meta.Backend))
	if backend != "minio" {
		return w.local.Write(ctx, meta, content, contentType)
	}
	if w.minio == nil {
		// MinIO 未初始化：记录预警并回退到本地
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		obj, lerr := w.local.Write(ctx, meta, content, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
		}
		// 返回对象同时返回预警错误，便于上层记录但不中断流程
		return obj, fmt.Errorf("minio client not initialized; wrote to local instead")
	}
	obj, err := w.minio.Write(ctx, meta, content, contentType)
	if err != nil {
		logger.Warn("MinIO write failed; falling back to local", "error", err)
		objLocal, lerr := w.local.Write(ctx, meta, content, contentType)
		if lerr != nil {
			return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
		}
		return objLocal, fmt.Errorf("minio write failed: %w; fell back to local successfully", err)
	}
	return obj, nil
}

// objectParts 本地与 MinIO 共用的路径层级：prefix / device / date_time / runID
func objectParts(prefix string, meta StorageMeta) []string {
	var parts []string
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	deviceLabel := strings.TrimSpace(meta.DeviceName)
	if deviceLabel == "" {
		deviceLabel = strings.TrimSpace(meta.DeviceIP)
	}
	parts = append(parts, slug(deviceLabel))

	datePart := strings.TrimSpace(meta.DateYYYYMMDD)
	if datePart == "" {
		datePart = time.Now().Format("20060102")
	}
	timePart := strings.TrimSpace(meta.TimeHHMMSS)
	if timePart == "" {
		timePart = time.Now().Format("150405")
	}
	parts = append(parts, fmt.Sprintf("%s_%s", datePart, timePart))
	if rid := strings.TrimSpace(meta.RunID); rid != "" {
		parts = append(parts, rid)
	}
	return parts
}

func objectFilename(name string) string {
	base := slug(name)
	if !strings.Contains(base, ".") {
		return base + ".txt"
	}
	return base
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg *config.Config
}

func (w *LocalStorageWriter) Write(ctx context.Context, meta StorageMeta, content string, contentType string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Report.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data"
	}
	dirPath := filepath.Join(append([]string{baseDir}, objectParts(w.cfg.Report.Prefix, meta)...)...)

	if w.cfg.Report.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}

	fullPath := filepath.Join(dirPath, objectFilename(meta.Name))
	data := []byte(content)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	ct := contentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: ct,
	}, nil
}

// MinioStorageWriter 将报告写入 MinIO，桶在首次写入时检查并创建
type MinioStorageWriter struct {
	cfg      *config.Config
	client   *minio.Client
	endpoint string

	bucketMu    sync.Mutex
	bucketReady bool
}

// putBackoff 对象写入的重试间隔，同时作为单次写入的超时
var putBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// initMinioWriter 按配置创建 MinIO 客户端；配置不完整时返回 nil，由上层回退到本地
func initMinioWriter(cfg *config.Config) *MinioStorageWriter {
	mc := cfg.Storage.Minio
	host := strings.TrimSpace(mc.Host)
	if host == "" || mc.Port <= 0 {
		logger.Warn("MinIO configuration incomplete; reports will be written locally", "host", host, "port", mc.Port)
		return nil
	}
	endpoint := net.JoinHostPort(host, strconv.Itoa(mc.Port))

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.Secure,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
		},
	})
	if err != nil {
		logger.Error("MinIO client initialization failed", "endpoint", endpoint, "error", err)
		return nil
	}
	logger.Info("MinIO report storage enabled", "endpoint", endpoint, "bucket", mc.Bucket)
	return &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
}

// Write 上传报告对象，失败时按 putBackoff 重试
func (w *MinioStorageWriter) Write(ctx context.Context, meta StorageMeta, content string, contentType string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, fmt.Errorf("minio client not initialized")
	}
	bucket := strings.TrimSpace(w.cfg.Storage.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	objectName := path.Join(append(objectParts(w.cfg.Report.Prefix, meta), objectFilename(meta.Name))...)
	data := []byte(content)

	// TCP 探测失败时尽早返回，避免 SDK 内部长时间重试
	if err := w.probe(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio unreachable at %s: %w", w.endpoint, err)
	}
	if err := w.ensureBucket(ctx, bucket); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	var lastErr error
	for i, wait := range putBackoff {
		attemptCtx, cancel := attemptContext(ctx, wait)
		_, lastErr = w.client.PutObject(attemptCtx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		cancel()
		if lastErr == nil {
			break
		}
		logger.Warn("MinIO put failed", "object", objectName, "attempt", i+1, "error", lastErr)
		if ctx.Err() != nil || i == len(putBackoff)-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: contentType,
	}, nil
}

func (w *MinioStorageWriter) probe(ctx context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ensureBucket 检查桶是否存在，不存在则创建；成功后不再检查
func (w *MinioStorageWriter) ensureBucket(ctx context.Context, bucket string) error {
	w.bucketMu.Lock()
	defer w.bucketMu.Unlock()
	if w.bucketReady {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		lastErr = w.createBucketIfMissing(ctx, bucket)
		if lastErr == nil {
			w.bucketReady = true
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return lastErr
}

func (w *MinioStorageWriter) createBucketIfMissing(ctx context.Context, bucket string) error {
	checkCtx, cancel := attemptContext(ctx, 10*time.Second)
	defer cancel()
	exists, err := w.client.BucketExists(checkCtx, bucket)
	if err != nil || exists {
		return err
	}
	return w.client.MakeBucket(checkCtx, bucket, minio.MakeBucketOptions{})
}

// attemptContext 单次操作的超时上下文，不超过父上下文剩余时间（至少保留 1 秒）
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := parent.Deadline()
	if !ok {
		return context.WithTimeout(parent, prefer)
	}
	remain := time.Until(deadline) - time.Second
	switch {
	case remain < time.Second:
		return context.WithTimeout(parent, time.Second)
	case prefer < remain:
		return context.WithTimeout(parent, prefer)
	default:
		return context.WithTimeout(parent, remain)
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
