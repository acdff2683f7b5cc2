// Package datasource replays recorded sensor data for the agent
// simulator from a pair of CSV files.
package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"roadwatch/internal/domain"
	"roadwatch/internal/ports"
)

// ErrExhausted signals that one of the CSV files ran out of rows.
var ErrExhausted = errors.New("datasource exhausted")

// FileDatasource zips an accelerometer CSV (x,y,z) with a GPS CSV
// (latitude,longitude) row by row. Each Read stamps the merged sample
// with the current time and the configured user id.
type FileDatasource struct {
	accelPath string
	gpsPath   string
	userID    int

	accelFile *os.File
	gpsFile   *os.File
	accel     *csv.Reader
	gps       *csv.Reader

	now func() time.Time
}

var _ ports.Datasource = (*FileDatasource)(nil)

// NewFile builds a datasource over the two recordings.
func NewFile(accelPath, gpsPath string, userID int) *FileDatasource {
	return &FileDatasource{
		accelPath: accelPath,
		gpsPath:   gpsPath,
		userID:    userID,
		now:       time.Now,
	}
}

// StartReading opens both files and skips their header rows. Calling it
// again rewinds the datasource to the first data row.
func (d *FileDatasource) StartReading() error {
	if err := d.StopReading(); err != nil {
		return err
	}

	accelFile, err := os.Open(d.accelPath)
	if err != nil {
		return fmt.Errorf("open accelerometer data: %w", err)
	}
	gpsFile, err := os.Open(d.gpsPath)
	if err != nil {
		accelFile.Close()
		return fmt.Errorf("open gps data: %w", err)
	}

	d.accelFile, d.gpsFile = accelFile, gpsFile
	d.accel, d.gps = csv.NewReader(accelFile), csv.NewReader(gpsFile)

	if _, err := d.accel.Read(); err != nil {
		return fmt.Errorf("read accelerometer header: %w", err)
	}
	if _, err := d.gps.Read(); err != nil {
		return fmt.Errorf("read gps header: %w", err)
	}
	return nil
}

// Read returns the next merged sample, or ErrExhausted once either file
// has no rows left.
func (d *FileDatasource) Read() (domain.AgentData, error) {
	if d.accel == nil || d.gps == nil {
		return domain.AgentData{}, errors.New("datasource not started")
	}

	accelRow, err := d.accel.Read()
	if errors.Is(err, io.EOF) {
		return domain.AgentData{}, ErrExhausted
	}
	if err != nil {
		return domain.AgentData{}, fmt.Errorf("read accelerometer row: %w", err)
	}

	gpsRow, err := d.gps.Read()
	if errors.Is(err, io.EOF) {
		return domain.AgentData{}, ErrExhausted
	}
	if err != nil {
		return domain.AgentData{}, fmt.Errorf("read gps row: %w", err)
	}

	if len(accelRow) < 3 {
		return domain.AgentData{}, fmt.Errorf("accelerometer row has %d columns, want 3", len(accelRow))
	}
	if len(gpsRow) < 2 {
		return domain.AgentData{}, fmt.Errorf("gps row has %d columns, want 2", len(gpsRow))
	}

	values := make([]float64, 0, 5)
	for _, field := range append(accelRow[:3:3], gpsRow[:2]...) {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return domain.AgentData{}, fmt.Errorf("parse field %q: %w", field, err)
		}
		values = append(values, v)
	}

	return domain.AgentData{
		UserID:        d.userID,
		Accelerometer: domain.Accelerometer{X: values[0], Y: values[1], Z: values[2]},
		Gps:           domain.Gps{Latitude: values[3], Longitude: values[4]},
		Timestamp:     d.now(),
	}, nil
}

// StopReading closes both files. Safe to call before StartReading.
func (d *FileDatasource) StopReading() error {
	var errs []error
	if d.accelFile != nil {
		errs = append(errs, d.accelFile.Close())
		d.accelFile, d.accel = nil, nil
	}
	if d.gpsFile != nil {
		errs = append(errs, d.gpsFile.Close())
		d.gpsFile, d.gps = nil, nil
	}
	return errors.Join(errs...)
}
