package server

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/zsefvlol/timezonemapper"

	"hstin/gdd/dataset"
	"hstin/gdd/schema"
)

var (
	ErrInvalidLatitude  = errors.New("invalid latitude")
	ErrInvalidLongitude = errors.New("invalid longitude")
	ErrOutsideGrid      = errors.New("location is outside the grid")
)

const earthRadiusKm = 6371.0

// DefaultMaxDistanceKm is about one and a half NARR cells.
const DefaultMaxDistanceKm = 50.0

const DefaultCacheSize = 4096

type PointResponse struct {
	CalculationTime int64   `json:"calculation_time"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	GridLatitude    float64 `json:"grid_latitude"`
	GridLongitude   float64 `json:"grid_longitude"`
	DistanceKm      float64 `json:"distance_km"`
	Y               int     `json:"y"`
	X               int     `json:"x"`
	UTCOffset       int     `json:"utc_offset"`
	Timezone        string  `json:"timezone"`
	Units           string  `json:"units"`
	FillValue       int16   `json:"fill_value"`
	Times           []int64 `json:"times"`
	GDD             []int16 `json:"gdd"`
}

// Store answers nearest-cell queries against one loaded gdd result.
type Store struct {
	result        *dataset.Result
	maxDistanceKm float64
	cacheSize     int

	mu    sync.RWMutex
	cache map[[2]float64]cellIndex
}

type cellIndex struct {
	y, x     int
	distance float64
}

type StoreOptions struct {
	MaxDistanceKm float64
	// CacheSize caps the lookup cache; it is emptied once full.
	CacheSize int
}

func NewStore(result *dataset.Result, options StoreOptions) *Store {
	if options.MaxDistanceKm <= 0 {
		options.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if options.CacheSize <= 0 {
		options.CacheSize = DefaultCacheSize
	}
	return &Store{
		result:        result,
		maxDistanceKm: options.MaxDistanceKm,
		cacheSize:     options.CacheSize,
		cache:         make(map[[2]float64]cellIndex),
	}
}

func validateLatLng(latitude, longitude float64) error {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// nearest scans the curvilinear lat/lon grid. Lookups are cached at about
// 100 m resolution, up to cacheSize entries.
func (s *Store) nearest(latitude, longitude float64) cellIndex {
	key := [2]float64{math.Round(latitude*1000) / 1000, math.Round(longitude*1000) / 1000}

	s.mu.RLock()
	idx, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return idx
	}

	best := cellIndex{distance: math.Inf(1)}
	r := s.result
	for i := range r.Lat {
		d := haversineKm(latitude, longitude, r.Lat[i], r.Lon[i])
		if d < best.distance {
			best = cellIndex{y: i / r.NX, x: i % r.NX, distance: d}
		}
	}

	s.mu.Lock()
	if len(s.cache) >= s.cacheSize {
		clear(s.cache)
	}
	s.cache[key] = best
	s.mu.Unlock()
	return best
}

func (s *Store) Point(latitude, longitude float64) (PointResponse, error) {
	startCalculation := time.Now()

	if err := validateLatLng(latitude, longitude); err != nil {
		return PointResponse{}, err
	}

	idx := s.nearest(latitude, longitude)
	if idx.distance > s.maxDistanceKm {
		return PointResponse{}, ErrOutsideGrid
	}

	timezone := timezonemapper.LatLngToTimezoneString(latitude, longitude)
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	_, offset := time.Now().In(loc).Zone()

	r := s.result
	times := make([]int64, len(r.Times))
	for i, t := range r.Times {
		times[i] = t.Unix() * 1000
	}
	cell := idx.y*r.NX + idx.x

	return PointResponse{
		CalculationTime: time.Since(startCalculation).Microseconds(),
		Latitude:        latitude,
		Longitude:       longitude,
		GridLatitude:    r.Lat[cell],
		GridLongitude:   r.Lon[cell],
		DistanceKm:      math.Round(idx.distance*1000) / 1000,
		Y:               idx.y,
		X:               idx.x,
		UTCOffset:       offset * 1000,
		Timezone:        timezone,
		Units:           r.Units,
		FillValue:       schema.FillValue,
		Times:           times,
		GDD:             r.Series(idx.y, idx.x),
	}, nil
}
