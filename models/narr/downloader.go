package narr

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"hstin/gdd/common"
	. "hstin/gdd/helper"
)

type NARRDataset struct {
	variable  string
	level     string
	urlFormat string
	firstYear int
}

var narrDatasets = map[string]NARRDataset{
	"air.2m": {
		variable:  "air",
		level:     "2 m",
		urlFormat: "%s/Datasets/NARR/Dailies/monolevel/air.2m.%d.nc",
		firstYear: 1979,
	},
	"air.sfc": {
		variable:  "air",
		level:     "surface",
		urlFormat: "%s/Datasets/NARR/Dailies/monolevel/air.sfc.%d.nc",
		firstYear: 1979,
	},
}

const DefaultBaseURL = "https://downloads.psl.noaa.gov"

type NARRDownloader struct {
	datasetName  string
	dataset      NARRDataset
	baseURL      string
	outputFolder string
	retries      int
	retryDelay   time.Duration
	httpClient   *http.Client
}

type NARRDownloaderOptions struct {
	Dataset      string
	BaseURL      string
	OutputFolder string
	Retries      int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

func NewNARRDownloader(options NARRDownloaderOptions) (*NARRDownloader, error) {
	if options.Dataset == "" {
		options.Dataset = "air.2m"
	}
	dataset, exists := narrDatasets[options.Dataset]
	if !exists {
		return nil, fmt.Errorf("%w: unknown NARR dataset %q (have %s)", common.ErrConfiguration, options.Dataset, strings.Join(Datasets(), ", "))
	}

	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.OutputFolder == "" {
		options.OutputFolder = "data"
	}
	if options.Timeout == 0 {
		options.Timeout = 30 * time.Minute
	}

	if err := os.MkdirAll(options.OutputFolder, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", common.ErrIO, options.OutputFolder, err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		Log.Warn().Err(err).Msg("HTTP/2 not available, using HTTP/1.1")
	}

	return &NARRDownloader{
		datasetName:  options.Dataset,
		dataset:      dataset,
		baseURL:      strings.TrimSuffix(options.BaseURL, "/"),
		outputFolder: options.OutputFolder,
		retries:      options.Retries,
		retryDelay:   options.RetryDelay,
		httpClient:   &http.Client{Timeout: options.Timeout, Transport: transport},
	}, nil
}

// Datasets lists the names NewNARRDownloader accepts.
func Datasets() []string {
	names := make([]string, 0, len(narrDatasets))
	for name := range narrDatasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *NARRDownloader) Variable() string {
	return d.dataset.variable
}

func (d *NARRDownloader) getFileUrl(year int) string {
	return fmt.Sprintf(d.dataset.urlFormat, d.baseURL, year)
}

// DownloadYear fetches the daily file of one year into the output folder
// and returns its path.
func (d *NARRDownloader) DownloadYear(year int) (string, error) {
	if year < d.dataset.firstYear || year > time.Now().UTC().Year() {
		return "", fmt.Errorf("%w: no %s data for %d", common.ErrConfiguration, d.datasetName, year)
	}
	return d.Download(d.getFileUrl(year))
}

// Download fetches any URL into the output folder. A .bz2 suffix is
// decompressed on the fly.
func (d *NARRDownloader) Download(fileUrl string) (string, error) {
	u, err := url.Parse(fileUrl)
	if err != nil {
		return "", fmt.Errorf("%w: bad url %q: %v", common.ErrConfiguration, fileUrl, err)
	}
	fileName := strings.TrimSuffix(path.Base(u.Path), ".bz2")
	if fileName == "" || fileName == "/" || fileName == "." {
		return "", fmt.Errorf("%w: url %q names no file", common.ErrConfiguration, fileUrl)
	}

	filePath := filepath.Join(d.outputFolder, fileName)
	if err := d.downloadFile(fileUrl, filePath, d.retries); err != nil {
		return "", err
	}

	Log.Info().Msgf("[DL] Downloaded %s", filePath)
	return filePath, nil
}

func (d *NARRDownloader) retry(fileUrl, filePath string, retries int, reason string) error {
	Log.Info().Msgf("[DL] Retrying %s... %s", fileUrl, reason)
	if d.retryDelay > 0 {
		time.Sleep(d.retryDelay)
	}
	return d.downloadFile(fileUrl, filePath, retries-1)
}

func (d *NARRDownloader) downloadFile(fileUrl, filePath string, retries int) error {
	resp, err := d.httpClient.Get(fileUrl)
	if err != nil {
		if retries > 0 {
			return d.retry(fileUrl, filePath, retries, fmt.Sprintf("Error: %s", err))
		}
		return fmt.Errorf("%w: [DL] getting url: %v", common.ErrIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if retries > 0 && resp.StatusCode != http.StatusNotFound {
			return d.retry(fileUrl, filePath, retries, fmt.Sprintf("Status code: %d", resp.StatusCode))
		}
		return fmt.Errorf("%w: [DL] %s: status code %d", common.ErrIO, fileUrl, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(fileUrl, ".bz2") {
		body = bzip2.NewReader(resp.Body)
	}

	tmpFile, err := os.CreateTemp(d.outputFolder, ".download-*")
	if err != nil {
		return fmt.Errorf("%w: [DL] creating file: %v", common.ErrIO, err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err = io.Copy(tmpFile, body); err != nil {
		tmpFile.Close()
		if retries > 0 {
			return d.retry(fileUrl, filePath, retries, fmt.Sprintf("Error: %s", err))
		}
		return fmt.Errorf("%w: [DL] copying file: %v", common.ErrIO, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: [DL] closing file: %v", common.ErrIO, err)
	}

	if err := os.Rename(tmpFile.Name(), filePath); err != nil {
		return fmt.Errorf("%w: [MOVE] %v", common.ErrIO, err)
	}
	return nil
}

// DownloadYears fetches several years, concurrently when fast is set. It
// returns the paths of the files that were downloaded and the first error.
func DownloadYears(options NARRDownloaderOptions, years []int, fast bool) (map[int]string, error) {
	d, err := NewNARRDownloader(options)
	if err != nil {
		return nil, err
	}

	files := make(map[int]string)
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	processYear := func(year int) {
		defer wg.Done()
		filePath, err := d.DownloadYear(year)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			Log.Error().Err(err).Msgf("Downloading %s %d", d.datasetName, year)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		files[year] = filePath
	}

	Log.Info().Msgf("Downloading %s for %d years with Fast Mode: %t", d.datasetName, len(years), fast)

	for _, year := range years {
		wg.Add(1)
		if fast {
			go processYear(year)
		} else {
			processYear(year)
		}
	}

	wg.Wait()

	return files, firstErr
}
