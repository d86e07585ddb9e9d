package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mdpress/presto/internal/blob"
)

// fakeAPI implements the api interface with overridable funcs.
type fakeAPI struct {
	headBucketFn func(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	headFn       func(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	getFn        func(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	putFn        func(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	deleteFn     func(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	listFn       func(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

func (f *fakeAPI) HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.headBucketFn != nil {
		return f.headBucketFn(ctx, in, opts...)
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	if f.headFn != nil {
		return f.headFn(ctx, in, opts...)
	}
	return &awss3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	if f.getFn != nil {
		return f.getFn(ctx, in, opts...)
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (f *fakeAPI) PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.putFn != nil {
		return f.putFn(ctx, in, opts...)
	}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, in, opts...)
	}
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	if f.listFn != nil {
		return f.listFn(ctx, in, opts...)
	}
	return &awss3.ListObjectsV2Output{}, nil
}

func TestGet_MissingKey(t *testing.T) {
	api := &fakeAPI{
		getFn: func(_ context.Context, _ *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			return nil, &types.NoSuchKey{}
		},
	}
	s := NewStoreForTest(api, "manifests", "")

	_, err := s.Get(context.Background(), "abc")
	if !errors.Is(err, blob.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestGet_PrefixApplied(t *testing.T) {
	var gotKey string
	api := &fakeAPI{
		getFn: func(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
			gotKey = *in.Key
			return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("data"))}, nil
		},
	}
	s := NewStoreForTest(api, "manifests", "images/")

	data, err := s.Get(context.Background(), "abc.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "images/abc.tif" {
		t.Fatalf("got key %q, want %q", gotKey, "images/abc.tif")
	}
	if string(data) != "data" {
		t.Fatalf("got %q, want %q", data, "data")
	}
}

func TestExists_NotFoundIsFalseNotError(t *testing.T) {
	api := &fakeAPI{
		headFn: func(_ context.Context, _ *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
			return nil, &types.NotFound{}
		},
	}
	s := NewStoreForTest(api, "manifests", "")

	ok, err := s.Exists(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for missing key")
	}
}

func TestPut_WrapsError(t *testing.T) {
	api := &fakeAPI{
		putFn: func(_ context.Context, _ *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	s := NewStoreForTest(api, "manifests", "")

	err := s.Put(context.Background(), "abc", []byte("v"))
	var be *blob.Error
	if !errors.As(err, &be) || be.Op != blob.OpPut {
		t.Fatalf("got %v, want blob.Error with Op=PUT", err)
	}
}

func TestList_PagesAndStripsPrefix(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		listFn: func(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
			calls++
			if calls == 1 {
				return &awss3.ListObjectsV2Output{
					Contents:              []types.Object{{Key: aws.String("pre/a.tif")}},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("tok"),
				}, nil
			}
			if in.ContinuationToken == nil || *in.ContinuationToken != "tok" {
				t.Fatal("continuation token not propagated")
			}
			return &awss3.ListObjectsV2Output{
				Contents: []types.Object{{Key: aws.String("pre/b.tif")}},
			}, nil
		},
	}
	s := NewStoreForTest(api, "manifests", "pre/")

	keys, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a.tif" || keys[1] != "b.tif" {
		t.Fatalf("got %v, want [a.tif b.tif]", keys)
	}
}
