package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/pure_utils"
)

type featureFlag string

const (
	// Review of a draft is mandatory before approval. "all" or a comma separated list of suite ids.
	FEATURE_MANDATORY_REVIEW featureFlag = "MANDATORY_REVIEW"
	// AI analysis of finished runs, global only.
	FEATURE_RUN_ANALYSIS featureFlag = "RUN_ANALYSIS"
)

// FeatureFlagScope is the set of suites a flag is enabled for.
type FeatureFlagScope struct {
	All    bool
	Suites []uuid.UUID
}

func (s FeatureFlagScope) Enabled(suiteId uuid.UUID) bool {
	if s.All {
		return true
	}
	for _, id := range s.Suites {
		if id == suiteId {
			return true
		}
	}
	return false
}

func HasGlobalFeatureFlag(flag featureFlag) bool {
	return getFeatureFlagEnv(flag) != ""
}

// FeatureFlagScopeOf parses the ENABLE_<flag> variable. Entries that are neither "all" nor a uuid
// are ignored.
func FeatureFlagScopeOf(flag featureFlag) FeatureFlagScope {
	var scope FeatureFlagScope
	for entry := range strings.SplitSeq(getFeatureFlagEnv(flag), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "all" {
			scope.All = true
			continue
		}
		if id, err := uuid.Parse(entry); err == nil {
			scope.Suites = append(scope.Suites, id)
		}
	}
	scope.Suites = pure_utils.Deduplicate(scope.Suites)
	return scope
}

func HasFeatureFlag(flag featureFlag, suiteId uuid.UUID) bool {
	return FeatureFlagScopeOf(flag).Enabled(suiteId)
}

// RouteWithFeatureFlag registers the routes of cb only when the flag is set.
func RouteWithFeatureFlag(parent gin.IRoutes, flag featureFlag, cb func(sub gin.IRoutes)) {
	if !HasGlobalFeatureFlag(flag) {
		return
	}
	cb(parent)
}

func getFeatureFlagEnv(flag featureFlag) string {
	return os.Getenv(fmt.Sprintf("ENABLE_%s", string(flag)))
}
