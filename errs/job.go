package errs

import "errors"

// ErrJobRun marks an error propagated from a user-supplied Runnable. Job
// errors are first-class results: the job reaches the Error state and the
// message is surfaced to the originator as the job's result, it is never
// retried automatically.
var ErrJobRun = errors.New("job: run error")
