package device

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/gosimple/slug"
	"github.com/klauspost/compress/zstd"
	"github.com/weberc2/sanicfs/pkg/types"
)

type ObjectStore interface {
	PutObject(bucket, key string, data io.ReadSeeker) error
	GetObject(bucket, key string) (io.ReadCloser, error)
}

// Object keeps a whole image in an object store. The image is fetched and
// decompressed into memory on `Open`, and compressed and stored again on
// `Close` if anything was written.
type Object struct {
	Store  ObjectStore
	Bucket string
	Prefix string

	image *Memory
	key   string
	dirty bool
}

func NewObject(
	store ObjectStore,
	bucket string,
	prefix string,
	geometry Geometry,
) *Object {
	return &Object{
		Store:  store,
		Bucket: bucket,
		Prefix: prefix,
		image:  NewMemory(geometry),
	}
}

func (o *Object) Geometry() Geometry { return o.image.Geometry() }

// Key returns the object key an image name is stored under.
func (o *Object) Key(name string) string {
	return path.Join(o.Prefix, slug.Make(name)+".img.zst")
}

func (o *Object) Create(name string) error {
	if err := o.image.Create(name); err != nil {
		return err
	}
	o.key, o.dirty = o.Key(name), true
	return nil
}

func (o *Object) Open(name string) error {
	if o.image.Bytes() != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("object `%s` is still open", o.key),
		)
	}
	key := o.Key(name)
	body, err := o.Store.GetObject(o.Bucket, key)
	if err != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("fetching image `%s`: %w", key, err),
		)
	}
	defer body.Close()

	compressed, err := io.ReadAll(body)
	if err != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("reading image `%s`: %w", key, err),
		)
	}
	data, err := decompress(compressed)
	if err != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("decompressing image `%s`: %w", key, err),
		)
	}

	o.image.Images = Images{name: data}
	if err := o.image.Open(name); err != nil {
		return err
	}
	o.key, o.dirty = key, false
	return nil
}

func (o *Object) Close() error {
	data := o.image.Bytes()
	if data == nil {
		return types.NewDeviceErr("close", errNotOpen)
	}
	if o.dirty {
		compressed, err := compress(data)
		if err != nil {
			return types.NewDeviceErr(
				"close",
				fmt.Errorf("compressing image `%s`: %w", o.key, err),
			)
		}
		if err := o.Store.PutObject(
			o.Bucket,
			o.key,
			bytes.NewReader(compressed),
		); err != nil {
			return types.NewDeviceErr(
				"close",
				fmt.Errorf("storing image `%s`: %w", o.key, err),
			)
		}
	}
	if err := o.image.Close(); err != nil {
		return err
	}
	o.image.Images = Images{}
	o.key, o.dirty = "", false
	return nil
}

func (o *Object) ReadBlock(index types.Block, p []byte) error {
	return o.image.ReadBlock(index, p)
}

func (o *Object) WriteBlock(index types.Block, p []byte) error {
	if err := o.image.WriteBlock(index, p); err != nil {
		return err
	}
	o.dirty = true
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
