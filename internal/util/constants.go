package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
)

var (
	AllowedImageTypes      = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
)

// NotificationLimit bounds both notification projections. Older history is not paginated.
const NotificationLimit = 50
