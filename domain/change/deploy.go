package change

// DeployResult is the output of the deploy stage.
type DeployResult struct {
	branch      string
	deployed    bool
	diagnostics string
}

// NewDeployResult creates a DeployResult.
func NewDeployResult(branch string, deployed bool, diagnostics string) DeployResult {
	return DeployResult{branch: branch, deployed: deployed, diagnostics: diagnostics}
}

// Branch returns the feature branch the changes were applied on.
func (r DeployResult) Branch() string { return r.branch }

// Deployed returns true if the deploy script promoted the merge.
func (r DeployResult) Deployed() bool { return r.deployed }

// Diagnostics returns truncated script output, if any.
func (r DeployResult) Diagnostics() string { return r.diagnostics }
