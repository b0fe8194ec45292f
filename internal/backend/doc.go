// Package backend defines the common interface that all translation engines
// (the external pipeline process, the development stub) must implement, along
// with the settings exchanged between the job worker and engine
// implementations.
package backend
