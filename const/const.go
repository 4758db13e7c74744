package constant

// Defaults forwarded to the trainer when a task's params omit them.
const (
	DefaultTask        = "translation"
	DefaultSourceLang  = "de"
	DefaultTargetLang  = "en"
	DefaultOptimizer   = "spt_adam"
	DefaultCriterion   = "spt"
	DefaultLRScheduler = "inverse_sqrt"
	DefaultDetok       = "moses"
	DefaultRemoveBPE   = "@@ "
)

// ContainerBasePath is where a docker run sees its task directory.
const ContainerBasePath = "/app/mnt"
