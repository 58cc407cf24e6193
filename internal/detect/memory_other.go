// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux && !darwin

package detect

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// totalMemoryMB queries Windows via CIM. Other platforms report unknown.
func totalMemoryMB(ctx context.Context) (int, error) {
	if runtime.GOOS != "windows" {
		return 0, errors.New("memory probe not supported on " + runtime.GOOS)
	}
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
		`[Math]::Round((Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory / 1MB, 0)`)
	output, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	mb, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, err
	}
	return int(mb), nil
}
