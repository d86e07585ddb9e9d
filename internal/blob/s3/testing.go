package s3

// NewStoreForTest creates a Store with the provided API client (test-only).
func NewStoreForTest(c api, bucket, prefix string) *Store {
	return &Store{client: c, bucket: bucket, prefix: prefix}
}
