// Package output renders tan-cli results as a table, JSON or YAML.
//
// Table output is derived by reflection from struct and slice values;
// fields tagged `table:"wide"` appear only with --wide and `table:"-"`
// never appears. Times are shown with a relative suffix.
package output
