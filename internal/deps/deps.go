package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reel/internal/command"
	"reel/internal/config"
)

// Requirement defines an external binary an encoder relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// EncoderRequirements lists the binaries the configured encoders execute.
// Subprocess encoders need the first token of their path. The drapto library
// shells out to ffmpeg and ffprobe from PATH.
func EncoderRequirements(encoders []config.Encoder) []Requirement {
	var reqs []Requirement
	seen := make(map[string]bool)
	add := func(req Requirement) {
		if seen[req.Command] {
			return
		}
		seen[req.Command] = true
		reqs = append(reqs, req)
	}
	for _, enc := range encoders {
		switch enc.Kind {
		case config.KindDrapto:
			add(Requirement{Name: "ffmpeg", Command: "ffmpeg", Description: "Used by " + enc.Name})
			add(Requirement{Name: "ffprobe", Command: "ffprobe", Description: "Used by " + enc.Name})
		default:
			tokens, err := command.Split("path", enc.Path)
			binary := ""
			if err == nil && len(tokens) > 0 {
				binary = tokens[0]
			}
			add(Requirement{Name: enc.Name, Command: binary, Description: strings.TrimSpace(enc.Description)})
			if enc.Kind == config.KindFFmpeg {
				add(Requirement{Name: "ffprobe", Command: "ffprobe", Description: "Progress durations for " + enc.Name, Optional: true})
			}
		}
	}
	return reqs
}

// CheckEncoders reports whether every configured encoder can run.
func CheckEncoders(encoders []config.Encoder) []Status {
	return CheckBinaries(EncoderRequirements(encoders))
}
