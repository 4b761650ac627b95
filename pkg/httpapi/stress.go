package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/metrics"
)

// stressParams mirrors the original extractor's optional load-generation
// knobs: synthetic memory/disk/CPU pressure applied around a URL
// "processing" no-op, useful for exercising autoscaling and alerting.
type stressParams struct {
	URL             string
	StressMemory    bool
	StressDisk      bool
	StressCPU       bool
	MemorySizeMB    int
	DiskSizeMB      int
	CPULoadPercent  int
	CPUDurationSec  int
}

func parseStressParams(r *http.Request) (stressParams, string, bool) {
	q := r.URL.Query()

	p := stressParams{
		StressMemory:   q.Get("stress_memory") == "true",
		StressDisk:     q.Get("stress_disk") == "true",
		StressCPU:      q.Get("stress_cpu") == "true",
		MemorySizeMB:   100,
		DiskSizeMB:     100,
		CPULoadPercent: 50,
		CPUDurationSec: 10,
	}

	if v := q.Get("memory_size_mb"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return p, "memory_size_mb must be between 1 and 1000", false
		}
		p.MemorySizeMB = n
	}
	if v := q.Get("disk_size_mb"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return p, "disk_size_mb must be between 1 and 1000", false
		}
		p.DiskSizeMB = n
	}
	if v := q.Get("cpu_load_percent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return p, "cpu_load_percent must be between 0 and 100", false
		}
		p.CPULoadPercent = n
	}
	if v := q.Get("cpu_duration_sec"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 300 {
			return p, "cpu_duration_sec must be between 1 and 300", false
		}
		p.CPUDurationSec = n
	}

	return p, "", true
}

type processURLResponse struct {
	Message      string `json:"message"`
	StressMemory bool   `json:"stress_memory"`
	StressDisk   bool   `json:"stress_disk"`
	StressCPU    bool   `json:"stress_cpu"`
}

// handleProcessURL is the synthetic load-generation endpoint carried
// over from the original extractor service: a URL is required, but the
// URL itself is never fetched here (real ingestion goes through
// POST /tasks). stress_* query flags optionally allocate memory, write
// a scratch file, and busy-loop a goroutine to generate load.
func (s *Server) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("httpapi-stress")

	var body submitRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.URL == "" {
		metrics.StressRequestsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "url must not be empty")
		return
	}

	params, detail, ok := parseStressParams(r)
	if !ok {
		metrics.StressRequestsTotal.WithLabelValues("out_of_range").Inc()
		writeError(w, http.StatusUnprocessableEntity, detail)
		return
	}
	params.URL = body.URL

	if params.StressMemory {
		log.Info().Int("memory_size_mb", params.MemorySizeMB).Msg("starting memory stress")
		blob, err := randomBytes(params.MemorySizeMB * 1024 * 1024)
		if err == nil {
			defer func() { blob = nil }()
		}
	}

	if params.StressDisk {
		log.Info().Int("disk_size_mb", params.DiskSizeMB).Msg("starting disk stress")
		if path, err := writeScratchFile(params.DiskSizeMB); err == nil {
			defer os.Remove(path)
		} else {
			log.Warn().Err(err).Msg("disk stress failed")
		}
	}

	if params.StressCPU {
		log.Info().Int("cpu_load_percent", params.CPULoadPercent).Int("cpu_duration_sec", params.CPUDurationSec).Msg("starting cpu stress")
		cpuStress(r.Context(), params.CPULoadPercent, params.CPUDurationSec)
	}

	metrics.StressRequestsTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, processURLResponse{
		Message:      "Processing URL: " + params.URL,
		StressMemory: params.StressMemory,
		StressDisk:   params.StressDisk,
		StressCPU:    params.StressCPU,
	})
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	const chunk = 1 << 20
	for offset := 0; offset < n; offset += chunk {
		end := offset + chunk
		if end > n {
			end = n
		}
		if _, err := rand.Read(buf[offset:end]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func writeScratchFile(sizeMB int) (string, error) {
	f, err := os.CreateTemp("", "mediascribe-stress-*.tmp")
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := randomBytes(sizeMB * 1024 * 1024)
	if err != nil {
		return f.Name(), err
	}
	if _, err := f.Write(data); err != nil {
		return f.Name(), err
	}
	return f.Name(), nil
}

// cpuStress busy-loops, throttled to approximate loadPercent, until
// durationSec elapses or ctx is cancelled (e.g. the client disconnects),
// whichever comes first. Bounded by cpu_duration_sec<=300.
func cpuStress(ctx context.Context, loadPercent, durationSec int) {
	end := time.Now().Add(time.Duration(durationSec) * time.Second)
	sleepFraction := float64(100-loadPercent) / 100.0

	for time.Now().Before(end) {
		if ctx.Err() != nil {
			return
		}
		burnCPU()
		if sleepFraction > 0 {
			time.Sleep(time.Duration(sleepFraction * float64(100*time.Millisecond)))
		}
	}
}

func burnCPU() {
	x := big.NewInt(2)
	for i := 0; i < 10000; i++ {
		x.Mul(x, big.NewInt(int64(i+1)))
		x.Mod(x, big.NewInt(1_000_000_007))
	}
}
