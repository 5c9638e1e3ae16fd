package dedup

// abbreviations maps well-known shorthand for causal-inference and
// econometrics terms to the expanded form used as the canonical name.
// Lookup happens after lowercasing and punctuation stripping, and only
// against the whole remaining string, so "iv estimation" is left alone
// while a bare "iv" expands.
var abbreviations = map[string]string{
	"iv": "instrumental variables",

	"2sls": "two-stage least squares",
	"tsls": "two-stage least squares",

	"did":          "difference-in-differences",
	"dd":           "difference-in-differences",
	"diff-in-diff": "difference-in-differences",

	"rdd": "regression discontinuity design",
	"rd":  "regression discontinuity design",

	"psm": "propensity score matching",
	"ipw": "inverse probability weighting",

	"ate":  "average treatment effect",
	"att":  "average treatment effect on the treated",
	"atc":  "average treatment effect on the controls",
	"atu":  "average treatment effect on the untreated",
	"late": "local average treatment effect",
	"cate": "conditional average treatment effect",
	"cace": "complier average causal effect",
	"itt":  "intention to treat",
	"tot":  "treatment on the treated",

	"ols": "ordinary least squares",
	"gls": "generalized least squares",
	"wls": "weighted least squares",
	"gmm": "generalized method of moments",
	"mle": "maximum likelihood estimation",
	"dml": "double machine learning",

	"lasso": "least absolute shrinkage and selection operator",

	"dag": "directed acyclic graph",
	"sem": "structural equation model",

	"scm": "synthetic control method",
	"sc":  "synthetic control method",

	"rct": "randomized controlled trial",

	"fe": "fixed effects",
	"re": "random effects",

	"cia":   "conditional independence assumption",
	"sutva": "stable unit treatment value assumption",
	"nuc":   "no unmeasured confounding",
	"mcar":  "missing completely at random",
}
