package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
)

func writeMetric(w io.Writer, name, help, kind string, value interface{}) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n", name, value)
}

// handleMetrics exports cache and store counters in the Prometheus text
// format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	if c := s.opts.Cached; c != nil {
		st := c.Stats()
		writeMetric(w, "mbseries_cache_hits_total", "Series served from the memory cache.", "counter", st.Hits)
		writeMetric(w, "mbseries_cache_store_hits_total", "Series served from the snapshot store.", "counter", st.StoreHits)
		writeMetric(w, "mbseries_cache_misses_total", "Series fetched from the provider.", "counter", st.Misses)
	}

	if sc := s.opts.SeriesCache; sc != nil {
		st := sc.Stats()
		writeMetric(w, "mbseries_series_cache_entries", "Entries in the memory cache.", "gauge", st.Size)
		writeMetric(w, "mbseries_series_cache_capacity", "Capacity of the memory cache.", "gauge", st.Capacity)
		writeMetric(w, "mbseries_series_cache_expired", "Expired entries awaiting eviction.", "gauge", st.Expired)
	}

	if store := s.opts.Store; store != nil {
		st := store.Stats()
		fmt.Fprintf(w, "# store size: %s lsm, %s vlog\n",
			humanize.Bytes(uint64(st.LSMBytes)), humanize.Bytes(uint64(st.VLogBytes)))
		writeMetric(w, "mbseries_store_series", "Series with at least one stored snapshot.", "gauge", st.Series)
		writeMetric(w, "mbseries_store_snapshots", "Stored snapshots.", "gauge", st.Snapshots)
		writeMetric(w, "mbseries_store_lsm_bytes", "Size of the LSM tree.", "gauge", st.LSMBytes)
		writeMetric(w, "mbseries_store_vlog_bytes", "Size of the value log.", "gauge", st.VLogBytes)
	}
}
