// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package chihaya

import (
	"flag"
	"net/http"
	_ "net/http/pprof"

	"github.com/golang/glog"
)

var debugAddr string

func init() {
	flag.StringVar(&debugAddr, "debugaddr", "", "if set, serve net/http/pprof on this address")
}

// debugBoot starts the pprof debug listener if -debugaddr was given.
func debugBoot() {
	if debugAddr == "" {
		return
	}
	glog.Infof("Serving pprof debug endpoint on %s", debugAddr)
	go func() {
		if err := http.ListenAndServe(debugAddr, nil); err != nil {
			glog.Errorf("debug: pprof listener exited: %s", err)
		}
	}()
}

// debugShutdown logs that the process is exiting; pprof has nothing to
// clean up explicitly.
func debugShutdown() {
	glog.V(1).Info("debug: shutting down")
}
