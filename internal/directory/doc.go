// Package directory polls the cloud for the devices shared with the
// account and publishes the differences.
package directory
