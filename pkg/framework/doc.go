// Package framework provides the periodic control loop and the runner
// keeping background producers alive.
package framework
