package handler

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// LogsHandler 日志查询处理器
type LogsHandler struct {
	path string
}

func NewLogsHandler(path string) *LogsHandler { return &LogsHandler{path: strings.TrimSpace(path)} }

// TailLogs 返回日志文件末尾 N 行，支持 q（关键字）与 level、device 过滤
func (h *LogsHandler) TailLogs(c *gin.Context) {
	if h.path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "LOG_PATH_EMPTY", Message: "日志未输出到文件"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	var filters []string
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filters = append(filters, strings.ToLower(q))
	}
	if lvl := strings.TrimSpace(c.Query("level")); lvl != "" {
		filters = append(filters, "level="+strings.ToLower(lvl))
	}
	if dev := strings.TrimSpace(c.Query("device")); dev != "" {
		filters = append(filters, "device="+strings.ToLower(dev))
	}

	lines, err := tailLines(h.path, limit, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "READ_FAILED", Message: "读取日志失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取日志成功",
		Data: gin.H{
			"path":  h.path,
			"count": len(lines),
			"lines": lines,
		},
	})
}

// tailLines 单次扫描，只保留最后 limit 条匹配所有过滤条件的行
func tailLines(path string, limit int, filters []string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, limit)
	n := 0
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for s.Scan() {
		line := s.Text()
		if !matchAll(line, filters) {
			continue
		}
		ring[n%limit] = line
		n++
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if n <= limit {
		return append([]string{}, ring[:n]...), nil
	}
	out := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, ring[(n+i)%limit])
	}
	return out, nil
}

// matchAll text 与 json 两种日志格式均可匹配 level=/device= 形式的条件
func matchAll(line string, filters []string) bool {
	lower := strings.ToLower(line)
	for _, f := range filters {
		if strings.Contains(lower, f) {
			continue
		}
		if k, v, ok := strings.Cut(f, "="); ok && strings.Contains(lower, `"`+k+`":"`+v) {
			continue
		}
		return false
	}
	return true
}
