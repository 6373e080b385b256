// Package csvfile reads and writes the flat files under the data root: the
// geographic reference tables, the canonical output tables and the Forecast
// Hub raw cache.
package csvfile
