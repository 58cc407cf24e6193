// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build darwin

package detect

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// totalMemoryMB returns installed (unified) memory from hw.memsize.
func totalMemoryMB(ctx context.Context) (int, error) {
	bytes, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	return int(bytes / (1024 * 1024)), nil
}
