package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// tpscroll-ctl sends control events to the tpscroll daemon via IPC.
//
// Usage:
//   tpscroll-ctl tick v -1
//   tpscroll-ctl stop
//   tpscroll-ctl click
//   tpscroll-ctl mode smooth
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/tpscroll.sock)

// Event types (duplicated from the daemon package for a standalone binary)
type Event interface{}

type ScrollTick struct {
	Axis  string `json:"axis"`
	Value int8   `json:"value"`
}

type ScrollStop struct{}

type MiddleClick struct{}

type SetScrollMode struct {
	Mode string `json:"mode"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/tpscroll.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var event Event

	switch args[0] {
	case "tick":
		if len(args) < 3 {
			fmt.Fprintf(os.Stderr, "error: tick requires an axis and a value\n")
			os.Exit(1)
		}
		axis := args[1]
		if axis != "v" && axis != "vertical" && axis != "h" && axis != "horizontal" {
			fmt.Fprintf(os.Stderr, "error: axis must be v|vertical|h|horizontal\n")
			os.Exit(1)
		}
		value, err := strconv.ParseInt(args[2], 10, 8)
		if err != nil || value == 0 {
			fmt.Fprintf(os.Stderr, "error: value must be a non-zero integer in [-128, 127]\n")
			os.Exit(1)
		}
		event = ScrollTick{Axis: axis, Value: int8(value)}

	case "stop":
		event = ScrollStop{}

	case "click":
		event = MiddleClick{}

	case "mode":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: mode requires an argument (smooth|classic)\n")
			os.Exit(1)
		}
		if args[1] != "smooth" && args[1] != "classic" {
			fmt.Fprintf(os.Stderr, "error: mode must be smooth or classic\n")
			os.Exit(1)
		}
		event = SetScrollMode{Mode: args[1]}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendEvent(socketPath, event); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func sendEvent(socketPath string, event Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalEvent(event Event) ([]byte, error) {
	var env EventEnvelope

	switch e := event.(type) {
	case ScrollTick:
		env.Type = "scroll_tick"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ScrollTick: %w", err)
		}
		env.Data = data

	case ScrollStop:
		env.Type = "scroll_stop"

	case MiddleClick:
		env.Type = "middle_click"

	case SetScrollMode:
		env.Type = "set_scroll_mode"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetScrollMode: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown event type: %T", event)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `tpscroll-ctl - Control the tpscroll daemon via IPC

Usage:
  tpscroll-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/tpscroll.sock)

Commands:
  tick <axis> <value>     Inject a synthetic wheel tick (axis: v|h)
  stop                    Reset any running scroll session
  click                   Synthesize a middle-button click
  mode <smooth|classic>   Switch the scroll mode at runtime
  help, -h, --help        Show this help message

Examples:
  tpscroll-ctl tick v -1
  tpscroll-ctl mode classic
  tpscroll-ctl -socket /var/run/tpscroll.sock stop
`)
}
