package storage

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL prefixes object keys in returned URLs, e.g.
	// https://files.example.com. Defaults to the endpoint.
	PublicURL string
}

func (c *MinIOConfig) publicBase() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	scheme := "http://"
	if c.UseSSL {
		scheme = "https://"
	}
	return scheme + c.Endpoint
}
