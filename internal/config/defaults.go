package config

// Default working file names, relative to the working directory.
const (
	DefaultCacheFile      = "cache.csv"
	DefaultCheckpointFile = "checkpoint.txt"
	DefaultOutputFile     = "narratives.csv"
	DefaultFailureFile    = "fail_data.csv"
	DefaultLogFile        = "generation.log"
)

// DefaultDraftPromptTemplate returns the built-in first-stage prompt.
// It asks for an inner monologue in the style of Virginia Satir's
// "When I Am Truly Willing to See Myself" and pins the reply to a JSON
// object keyed by the configured narrative field.
func DefaultDraftPromptTemplate() string {
	return `自我肯定语：{{.Sentence}}

请仿照萨提亚的《当我真的愿意看见自己时》的风格，为输入的自我肯定语生成一段内心旁白。
注意适当换行以减少读者的阅读难度。分三到四段生成内心旁白。不要写诗。
约500字。
必须以第一人称叙述。

请严格按照以下 JSON 格式返回数据：
{
  "{{.Field}}": "这里是生成的内心旁白内容"
}`
}

// DefaultCritiquePromptTemplate returns the built-in second-stage
// prompt. The first-stage text is embedded verbatim and the model is
// asked to revise it against a fixed checklist.
func DefaultCritiquePromptTemplate() string {
	return `针对上一次生成的内心旁白：
{{.Draft}}

请检查并优化以下内容：
- 修正标点/空格问题
- 改善语句通顺度
- 统一人称（第一人称），必须以第一人称叙述。
- 删除外语内容
- 防止场景过于具体
- 确保500字长度
- 删除奇怪比喻
- 修正语病/错别字

直接返回优化后的JSON：
{
  "{{.Field}}": "这里是修改后生成的内心旁白内容"
}`
}
