package main

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/config"
	"github.com/weberc2/sanicfs/pkg/device"
)

// newDevice builds the configured device. The returned cleanup releases
// anything the device holds beyond an open image, such as a database
// connection.
func newDevice(c *config.Config) (device.Device, func() error, error) {
	nop := func() error { return nil }
	geometry := c.Geometry()
	switch c.Device {
	case config.DeviceMemory:
		return device.NewMemory(geometry), nop, nil
	case config.DeviceFile:
		return device.NewFile(c.Dir, geometry), nop, nil
	case config.DeviceS3:
		store, err := device.NewS3ObjectStore(c.S3Region)
		if err != nil {
			return nil, nil, fmt.Errorf("building s3 device: %w", err)
		}
		return device.NewObject(store, c.S3Bucket, c.S3Prefix, geometry), nop, nil
	case config.DevicePostgres:
		db, err := device.OpenEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("building postgres device: %w", err)
		}
		pg := device.NewPostgres(db, geometry)
		if err := pg.EnsureTables(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("building postgres device: %w", err)
		}
		return pg, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported device `%s`", c.Device)
	}
}

func newAllocator(c *config.Config) alloc.New {
	if c.Allocator == config.AllocatorScan {
		return alloc.NewLinkAllocator
	}
	return alloc.NewIndexedAllocator
}
