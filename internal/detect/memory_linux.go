// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux

package detect

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// totalMemoryMB returns installed memory from sysinfo(2).
func totalMemoryMB(ctx context.Context) (int, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	return int(total / (1024 * 1024)), nil
}
