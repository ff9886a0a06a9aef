// Command fixtest is the CLI entry point:
//
//	fixtest <test_module> [-c CONFIG] [-v] [-d] [--] [extra args…]
//
// Dynamic test-class discovery from source files is out of scope
// test modules instead register
// themselves into Registry at package init time, and <test_module>
// selects one by name.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kennt/fixtest/examples/logon"
	"github.com/kennt/fixtest/testctl"
)

// Registry maps a test-module name to a constructor for its TestCase.
// Loading CONFIG from a file is external glue out of this module's
// ignoring configPath, registered constructors build their own Config,
// ignoring configPath, until a project wires in a real file loader.
// Constructors register their metrics against the process-wide default
// registry, since the CLI runs a single test module per process: the
// optional "-m" diagnostics server reads from that same default.
var Registry = map[string]func(configPath string) (testctl.TestCase, error){
	"logon": func(string) (testctl.TestCase, error) {
		return logon.NewWithRegistry(defaultLogonConfig(), prometheus.DefaultRegisterer)
	},
}

func defaultLogonConfig() *testctl.MapConfig {
	return &testctl.MapConfig{
		Roles: map[string]testctl.Role{
			"client":      {"name": "client-9940"},
			"test-server": {"name": "server-9940"},
		},
		Links: []testctl.Link{
			{
				Protocol:        "FIX",
				ProtocolVersion: "FIX.4.2",
				Host:            "127.0.0.1",
				Port:            9940,
				ActsAsServer:    "test-server",
				Roles:           map[string]string{"client": "CLIENT", "test-server": "TEST-SERVER"},
				RequiredFields:  []int{8, 9, 35, 49, 56, 34, 52},
				MaxLength:       2048,
			},
		},
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("fixtest", flag.ContinueOnError)
	configPath := fs.String("c", "", "path to a configuration file")
	verbose := fs.Bool("v", false, "verbose output")
	debug := fs.Bool("d", false, "debug output")
	metricsAddr := fs.String("m", "", "optional host:port to serve /metrics on during the test run")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "fixtest: missing <test_module>")
		return 2
	}
	testModule := rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return 2
	}

	ctor, ok := Registry[testModule]
	if !ok {
		fmt.Fprintf(os.Stderr, "fixtest: unknown test module %q\n", testModule)
		return 2
	}

	tc, err := ctor(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixtest: failed to construct %q: %v\n", testModule, err)
		return 2
	}

	if *verbose || *debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	controller := testctl.NewController(tc)
	controller.MetricsAddr = *metricsAddr
	exitCode := controller.Run(10 * time.Second)
	fmt.Println(controller.TestStatus)
	return exitCode
}
