// 包 config：集中读取运行配置与 AQI 服务凭证
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BuildAPIKey：构建期注入的凭证
// 用法：go build -ldflags "-X aqi-map/internal/config.BuildAPIKey=<token>"
var BuildAPIKey string

// 凭证来源标记，仅用于日志
const (
	SourceBuild = "build"
	SourceEnv   = "env"
	SourceNone  = "none"
)

// 文档注释：解析 AQI 服务凭证
// 背景：构建期注入优先，其次运行期环境变量 AQI_API_KEY、WAQI_TOKEN，均缺失时返回空串。
// 约束：空白值视为未配置；缺失凭证不在此处报错，由调用方在启动时记录。
func ResolveAPIKey(build string, lookup func(string) (string, bool)) (key, source string) {
	if k := strings.TrimSpace(build); k != "" {
		return k, SourceBuild
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range []string{"AQI_API_KEY", "WAQI_TOKEN"} {
		if v, ok := lookup(name); ok {
			if k := strings.TrimSpace(v); k != "" {
				return k, SourceEnv
			}
		}
	}
	return "", SourceNone
}

// Settings：服务运行配置，启动时一次性读取
type Settings struct {
	Addr    string
	APIBase string
	UIDist  string

	AQIBaseURL       string
	AQITimeout       time.Duration
	BatchConcurrency int
	RefreshEvery     time.Duration

	DBEnable     bool
	RedisChannel string
	GeoIPPath    string
	CenterLat    float64
	CenterLng    float64

	TLSEnable bool
	TLSCert   string
	TLSKey    string
}

// 文档注释：从环境变量读取运行配置
// 约束：解析失败的数值静默回退默认值；Postgres 与 Redis 连接参数由 utils 包读取。
func Load() Settings {
	base := strings.TrimRight(getenv("API_BASE", "/api"), "/")
	if base == "" {
		base = "/api"
	}
	return Settings{
		Addr:             getenv("ADDR", ":8080"),
		APIBase:          base,
		UIDist:           getenv("UI_DIST", filepath.Join("ui", "dist")),
		AQIBaseURL:       getenv("AQI_BASE_URL", ""),
		AQITimeout:       time.Duration(getint("AQI_HTTP_TIMEOUT_MS", 4000)) * time.Millisecond,
		BatchConcurrency: getint("AQI_BATCH_CONCURRENCY", 1),
		RefreshEvery:     time.Duration(getint("AQI_REFRESH_MINUTES", 0)) * time.Minute,
		DBEnable:         getbool("DB_ENABLE", false),
		RedisChannel:     getenv("REDIS_CHANNEL", "aqi:markers"),
		GeoIPPath:        getenv("GEOIP_DB_PATH", filepath.Join("data", "geoip", "GeoLite2-City.mmdb")),
		CenterLat:        getfloat("MAP_CENTER_LAT", 19.0760),
		CenterLng:        getfloat("MAP_CENTER_LNG", 72.8777),
		TLSEnable:        getbool("TLS_ENABLE", false),
		TLSCert:          getenv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKey:           getenv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
