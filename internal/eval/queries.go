package eval

// BuiltinQueries is the default evaluation query set, covering the
// core topics of a personal finance corpus at varied phrasing styles:
// comparisons, how-tos, definitions, and short keyword queries.
var BuiltinQueries = []string{
	"debt snowball vs avalanche",
	"how much should I keep in an emergency fund",
	"what is compound interest",
	"difference between a Roth IRA and a traditional IRA",
	"how to make a monthly budget",
	"paying off credit card debt fast",
	"index funds for beginners",
	"what does dollar cost averaging mean",
	"how much house can I afford",
	"employer 401k match explained",
	"good debt versus bad debt",
	"how to improve a credit score",
	"renting vs buying a home",
	"what is a high yield savings account",
	"diversification and risk",
	"how do bonds work",
	"saving for retirement in your twenties",
	"what is an expense ratio",
	"sinking funds for irregular expenses",
	"when to refinance a mortgage",
}
