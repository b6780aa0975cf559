package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iggrowth/pkg/engine"
	"iggrowth/pkg/ledger"
)

var (
	unfollowLimit  int
	pruneLimit     int
	copyLimit      int
	followTagLimit int
	likeTagLimit   int
	exploreBudget  int
	exploreAction  string
)

var unfollowCmd = &cobra.Command{
	Use:   "unfollow-unfollowers",
	Short: "Unfollow accounts that do not follow back",
	Long: `Unfollow accounts you follow that do not follow you back, up to the
limit. Manually whitelisted accounts are never touched; accounts whitelisted
by the pruning scan are NOT exempt from this operation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.UnfollowUnfollowers(unfollowLimit)
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune-mutuals",
	Short: "Unfollow low-value mutual follows",
	Long: `Evaluate mutual follows that have not been considered before. Every
scanned candidate is whitelisted (reason: scanned when pruning) so it is
never reconsidered; candidates whose own follower/following ratio is below
the threshold are unfollowed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.PruneMutualFollowers(pruneLimit)
		})
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy-followers <username>",
	Short: "Follow another account's followers",
	Long: `Fetch the followers of the named account, run them through the
good-user filter, and follow the survivors up to the limit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.CopyFollowers(args[0], copyLimit)
		})
	},
}

var followTagCmd = &cobra.Command{
	Use:   "follow-tag <tag>",
	Short: "Follow likers of a tag's top posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.FollowLikersOfTopPosts(args[0], followTagLimit)
		})
	},
}

var likeTagCmd = &cobra.Command{
	Use:   "like-tag <tag>",
	Short: "Like recent posts of likers of a tag's top posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.LikeLikersOfTopPosts(args[0], likeTagLimit)
		})
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Allocate action budget across tags with the bandit",
	Long: `Build the candidate tag set from your own recent captions and the
action history, sample each tag's Beta posterior once per unit of budget
(Thompson sampling), and run the follow/like operation for each tag with the
budget it won.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actionType := ledger.FollowTagLiker
		if exploreAction == "like" {
			actionType = ledger.LikeTagLiker
		} else if exploreAction != "follow" {
			return fmt.Errorf("unknown action %q (want follow or like)", exploreAction)
		}
		return withApp(func(a *app) error {
			return a.engine.ApplyBanditExploration(exploreBudget, actionType)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Record follower and liker deltas in the ledger",
	Long: `Diff the platform's current follower set against the ledger's
event-sourced one and append the delta, then walk your own recent feed and
record any likers not yet seen. Operations run independently; one failing
does not block the other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			failures := engine.RunBatch(a.log,
				engine.NamedOp{Name: "sync-follower-log", Run: a.engine.SyncFollowerLog},
				engine.NamedOp{Name: "sync-liker-log", Run: a.engine.SyncLikerLog},
			)
			if len(failures) > 0 {
				return fmt.Errorf("%d sync operation(s) failed", len(failures))
			}
			return nil
		})
	},
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist <username>",
	Short: "Follow an account and exempt it from automated unfollowing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return a.engine.FollowAndWhitelist(args[0])
		})
	},
}

// withApp builds the session-backed app, runs fn, and persists the session
// on clean completion
func withApp(fn func(*app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func init() {
	unfollowCmd.Flags().IntVarP(&unfollowLimit, "limit", "n", 100, "maximum accounts to unfollow")
	pruneCmd.Flags().IntVarP(&pruneLimit, "limit", "n", 50, "maximum candidates to scan")
	copyCmd.Flags().IntVarP(&copyLimit, "limit", "n", 200, "maximum accounts to follow")
	followTagCmd.Flags().IntVarP(&followTagLimit, "limit", "n", 50, "maximum accounts to follow")
	likeTagCmd.Flags().IntVarP(&likeTagLimit, "limit", "n", 50, "maximum accounts to like")
	exploreCmd.Flags().IntVarP(&exploreBudget, "budget", "n", 100, "total action budget to allocate")
	exploreCmd.Flags().StringVar(&exploreAction, "action", "follow", "action to explore with (follow or like)")

	rootCmd.AddCommand(unfollowCmd, pruneCmd, copyCmd, followTagCmd, likeTagCmd, exploreCmd, syncCmd, whitelistCmd)
}
