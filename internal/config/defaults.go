package config

const (
	defaultMediaRoot         = "~/.local/share/reel/media"
	defaultTempDir           = "~/.local/share/reel/tmp"
	defaultStateDir          = "~/.local/share/reel/state"
	defaultLogDir            = "~/.local/share/reel/logs"
	defaultMediaPathName     = "encode"
	defaultEncodeQueue       = "encoder"
	defaultRoutingKey        = "media.encode"
	defaultStoreQueue        = "default"
	defaultQueueBackend      = QueueMemory
	defaultRedisAddr         = "localhost:6379"
	defaultStreamPrefix      = "reel:tasks"
	defaultConsumerGroup     = "reel-workers"
	defaultBlockSeconds      = 5
	defaultMaxAttempts       = 3
	defaultWorkers           = 2
	defaultHeartbeatInterval = 30
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultMetricsBind       = "127.0.0.1:9464"
	defaultNtfyTimeout       = 10
	defaultRemoteSubdir      = "remote"
	defaultCDNSubdir         = "cdn"
)

// Storage backend names.
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendMinIO      = "minio"
)

// Queue backend names.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaRoot: defaultMediaRoot,
			TempDir:   defaultTempDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Encode: Encode{
			MediaPathName: defaultMediaPathName,
			Queue:         defaultEncodeQueue,
			RoutingKey:    defaultRoutingKey,
			StoreQueue:    defaultStoreQueue,
		},
		Encoders: defaultEncoders(),
		Profiles: defaultProfiles(),
		Storage: Storage{
			Local:  Backend{Backend: BackendFilesystem},
			Remote: Backend{Backend: BackendFilesystem},
			CDN:    Backend{Backend: BackendFilesystem},
		},
		Queue: Queue{
			Backend:      defaultQueueBackend,
			RedisAddr:    defaultRedisAddr,
			StreamPrefix: defaultStreamPrefix,
			Group:        defaultConsumerGroup,
			BlockSeconds: defaultBlockSeconds,
			MaxAttempts:  defaultMaxAttempts,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			HeartbeatInterval: defaultHeartbeatInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}

func defaultEncoders() []Encoder {
	return []Encoder{
		{
			Name:             "FFmpeg",
			Path:             "ffmpeg",
			Kind:             "ffmpeg",
			Description:      "FFmpeg is a complete, cross-platform solution to record, convert and stream audio and video.",
			DocumentationURL: "https://ffmpeg.org/ffmpeg.html",
		},
		{
			Name:             "convert (ImageMagick)",
			Path:             "convert",
			Kind:             "basic",
			Description:      "Converts between image formats as well as resize an image, blur, crop, and much more.",
			DocumentationURL: "http://www.imagemagick.org/script/convert.php",
		},
	}
}

func defaultProfiles() []Profile {
	return []Profile{
		{Name: "Flash Video", MIMEType: "video/x-flv", Container: "flv", VideoCodec: "FLV (Sorenson H.263)", AudioCodec: "MP3", Encoder: "FFmpeg", Command: "-c:v flv -c:a libmp3lame"},
		{Name: "MP4", MIMEType: "video/mp4", Container: "mp4", VideoCodec: "H.264", AudioCodec: "AAC", Encoder: "FFmpeg", Command: "-c:v libx264 -preset:v veryfast -crf 22 -ac 2 -c:a libfdk_aac"},
		{Name: "WebM Audio/Video", MIMEType: "video/webm", Container: "webm", VideoCodec: "VP8", AudioCodec: "Vorbis", Encoder: "FFmpeg", Command: "-c:v libvpx -c:a libvorbis"},
		{Name: "WebM Audio", MIMEType: "audio/webm", Container: "webm", AudioCodec: "Vorbis", Encoder: "FFmpeg", Command: "-ab 128k -c:a libvorbis"},
		{Name: "Ogg Audio/Video", MIMEType: "video/ogg", Container: "ogv", VideoCodec: "Theora", AudioCodec: "Vorbis", Encoder: "FFmpeg", Command: "-ab 128k -c:v libtheora -c:a libvorbis -vb 1000k"},
		{Name: "Ogg Audio", MIMEType: "audio/ogg", Container: "oga", AudioCodec: "Vorbis", Encoder: "FFmpeg", Command: "-f ogg -vn -sn -c:a libvorbis"},
		{Name: "MP3 Audio", MIMEType: "audio/mpeg", Container: "mp3", AudioCodec: "MP3", Encoder: "FFmpeg", Command: "-q:a 2"},
		{Name: "PNG", MIMEType: "image/png", Container: "png", Encoder: "convert (ImageMagick)", Command: `"{input}" -size 320x240 "{output}"`},
	}
}
