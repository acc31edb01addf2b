// validate-yaml checks tier limit files before they are deployed.
package main

import (
	"fmt"
	"os"

	"github.com/blockedby/groupinviter/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		tiers, err := config.LoadTiers(path)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (free: %s, premium: %s)\n", path, describe(tiers.Free), describe(tiers.Premium))
	}

	if failed {
		os.Exit(1)
	}
}

func describe(l config.TierLimits) string {
	return fmt.Sprintf("%d groups/day, %d users/group, %d invites/day", l.GroupsPerDay, l.UsersPerGroup, l.InvitesPerDay)
}
