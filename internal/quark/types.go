package quark

// Entry represents a file or directory on the drive, normalized from
// the API response. ShareFidToken is only set for entries sourced from
// a share listing; directory listings don't carry it.
type Entry struct {
	Fid           string
	Name          string
	IsDir         bool
	ParentFid     string
	ShareFidToken string
	Status        int
}

// Profile is the account information returned by identity verification.
type Profile struct {
	Nickname string
}

// DirInfo describes a created (or pre-existing, on name collision)
// directory.
type DirInfo struct {
	Fid       string
	Name      string
	ParentFid string
}

// TaskState is one observation of an asynchronous drive task.
// Status uses the remote encoding: 0=running, 1=failed, 2=finished.
type TaskState struct {
	TaskID         string
	Status         int
	Title          string
	ShareID        string // share tasks only, set on completion
	SaveDirName    string // transfer tasks only, destination display name
	FinishedAmount int64
	TotalAmount    int64
}

// Running reports whether the task is still in progress.
func (t *TaskState) Running() bool { return t.Status == taskStatusRunning }

// Finished reports whether the task completed successfully.
func (t *TaskState) Finished() bool { return t.Status == taskStatusFinished }

// Failed reports whether the remote declared the task failed.
func (t *TaskState) Failed() bool { return t.Status == taskStatusFailed }

// Progress returns the completion percentage, or -1 when the remote
// did not report amounts.
func (t *TaskState) Progress() int {
	if t.TotalAmount <= 0 {
		return -1
	}

	return int(t.FinishedAmount * 100 / t.TotalAmount)
}

// ShareResult is the outcome of finalizing a share: the public URL
// (with ?pwd= appended for password-protected shares) and its title.
type ShareResult struct {
	URL      string
	Title    string
	Passcode string
}
